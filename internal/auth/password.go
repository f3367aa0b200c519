// Package auth holds the password primitives used by password fields.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit
const MaxPasswordBytes = 72

// minHashLength is the shortest stored value treated as an existing hash
const minHashLength = 30

var hashPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// Hasher hashes passwords with bcrypt at a fixed cost
type Hasher struct {
	Cost int
}

// DefaultHasher uses bcrypt.DefaultCost
var DefaultHasher = Hasher{Cost: bcrypt.DefaultCost}

// Hash hashes a plain text password.
// Rejects passwords longer than 72 bytes (bcrypt's maximum)
func (h Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("password exceeds maximum length of %d bytes", MaxPasswordBytes)
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// HashPassword hashes a plain text password using the default cost
func HashPassword(password string) (string, error) {
	return DefaultHasher.Hash(password)
}

// CheckPassword compares a plain text password with a hashed password
// Returns true if the password matches the hash, false otherwise
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// LooksHashed reports whether value already is a bcrypt hash and must be
// stored verbatim instead of being hashed again.
func LooksHashed(value string) bool {
	if len(value) < minHashLength {
		return false
	}
	for _, prefix := range hashPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
