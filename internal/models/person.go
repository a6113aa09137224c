package models

// Person represents a chat user known to the system.
// Persons are shared across groups; settlements reference persons rather
// than members because a payment can happen outside any group context.
type Person struct {
	// ID is the unique identifier for the person (UUID format).
	ID string

	// ChatID is the external chat platform identifier, unique per person.
	ChatID string

	// Username is the optional chat handle.
	Username string

	// FirstName and LastName are optional display names.
	FirstName string
	LastName  string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}
