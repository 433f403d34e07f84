//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds are slow enough without an expensive hash
	return bcrypt.MinCost
}
