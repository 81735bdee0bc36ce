package crypto

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the work factor used by the original deployment.
const DefaultCost = 10

var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword returns a bcrypt digest of the password with a per-call
// random salt. Blank input is rejected rather than hashed.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, DefaultCost)
}

func HashPasswordCost(password string, cost int) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil iff password matches hash. bcrypt performs the
// comparison in constant time.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
