package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the bcrypt hashing cost factor.
const BcryptCost = 12

// ErrInvalidCredentials is returned when the admin password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a password with a bcrypt hash.
// Returns nil on success, or an error if the password doesn't match.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Admin verifies the single administrator password. A zero Admin has no
// password and accepts nothing; the API stays open in that case.
type Admin struct {
	hash string
}

// NewAdmin builds a verifier from the configured password, which may be a
// bcrypt hash or plain text.
func NewAdmin(configured string) (*Admin, error) {
	if configured == "" {
		return &Admin{}, nil
	}
	if strings.HasPrefix(configured, "$2") {
		if _, err := bcrypt.Cost([]byte(configured)); err != nil {
			return nil, err
		}
		return &Admin{hash: configured}, nil
	}
	hash, err := HashPassword(configured)
	if err != nil {
		return nil, err
	}
	return &Admin{hash: hash}, nil
}

// Enabled reports whether a password is configured.
func (a *Admin) Enabled() bool {
	return a != nil && a.hash != ""
}

// Authenticate checks password against the configured one.
func (a *Admin) Authenticate(password string) error {
	if !a.Enabled() || password == "" {
		return ErrInvalidCredentials
	}
	if err := CheckPassword(password, a.hash); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
