package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ComparePassword(hash, password string) error {
	if hash == "" || password == "" {
		return errors.New("missing hash or password")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Credentials is the single configured admin account. A bcrypt hash takes
// precedence over a plain password.
type Credentials struct {
	User         string
	Password     string
	PasswordHash string
}

func (c Credentials) Configured() bool {
	return c.User != "" && (c.Password != "" || c.PasswordHash != "")
}

func (c Credentials) Check(user, password string) error {
	if !c.Configured() || user == "" || password == "" {
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) != 1 {
		return ErrInvalidCredentials
	}
	if c.PasswordHash != "" {
		if ComparePassword(c.PasswordHash, password) != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
