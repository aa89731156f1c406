package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// HashPassword bcrypt-hashes the password. bcrypt silently ignores input past
// 72 bytes, so longer passwords are rejected instead of truncated.
func HashPassword(pw string) (string, error) {
	if len(pw) > 72 {
		return "", errors.New("password exceeds 72 bytes")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	return string(b), err
}

func CheckPassword(hashed, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
