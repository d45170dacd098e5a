package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for password digests.
// Cost 13 keeps a single verify in the hundreds of milliseconds on commodity
// hardware, which is the throttle we want on credential guessing.
const BcryptCost = 13

// HashPassword returns a bcrypt digest of the plaintext password.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, BcryptCost)
}

// HashPasswordCost hashes with an explicit cost. Tests use bcrypt.MinCost to
// stay fast; production callers should use HashPassword.
func HashPasswordCost(password string, cost int) (string, error) {
	if password == "" {
		return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "empty password"}
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether password matches the stored digest.
// A malformed digest is reported as an error distinct from a plain mismatch.
func VerifyPassword(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
