package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the bcrypt input limit
const maxPasswordBytes = 72

// BcryptHasher implements PasswordAuthenticator with a configurable cost
type BcryptHasher struct {
	cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

// NewBcryptHasher returns a hasher. A zero cost uses the build default.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = passwordHashCost()
	}
	return BcryptHasher{cost: cost}
}

// Cost returns the cost factor used for new hashes
func (h BcryptHasher) Cost() int {
	if h.cost == 0 {
		return passwordHashCost()
	}
	return h.cost
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost())
	return string(b), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredential
		}
		return err
	}
	return nil
}

// Verify reports whether password matches hash. Malformed hashes
// fail closed.
func (h BcryptHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return h.ComparePasswordAndHash(password, hash) == nil
}
