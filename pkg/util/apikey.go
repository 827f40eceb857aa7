package util

import (
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// HashAPIKey hashes an admin API key for storage in configuration.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyAPIKey checks a presented key against its bcrypt hash.
func VerifyAPIKey(hashedKey, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key)) == nil
}
