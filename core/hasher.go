package core

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes local account passwords with bcrypt. Cost zero falls
// back to the library default.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("core: password is required")
	}
	cost := h.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("core: hash password: %w", err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(hash string, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("core: credentials do not match: %w", err)
	}
	return nil
}

var _ PasswordHasher = BcryptHasher{}
