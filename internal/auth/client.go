package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid client id or secret")

// ClientAuthenticator verifies client-credential pairs against a bcrypt hash
// of the shared secret. Clients are configured statically; the expense
// extraction bot is the only expected caller.
type ClientAuthenticator struct {
	clientID   string
	secretHash []byte
}

// NewClientAuthenticator creates an authenticator for a single configured
// client. secretHash is the bcrypt hash of the client secret, never the
// secret itself.
func NewClientAuthenticator(clientID, secretHash string) *ClientAuthenticator {
	return &ClientAuthenticator{
		clientID:   clientID,
		secretHash: []byte(secretHash),
	}
}

// Authenticate verifies the client id and secret, returning the client id if
// valid.
func (a *ClientAuthenticator) Authenticate(clientID, secret string) (string, error) {
	if clientID != a.clientID {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.clientID, nil
}

// HashSecret hashes a client secret for configuration. Exposed for the
// hash-secret admin command.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}
