// Command hashsecret prints the bcrypt hash of a client secret for use as
// TALLY_CLIENT_SECRET_HASH.
package main

import (
	"fmt"
	"os"

	"github.com/tallybot/tally/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashsecret <secret>")
		os.Exit(2)
	}

	hash, err := auth.HashSecret(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to hash secret:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
