package security

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor for stored password hashes.
const PasswordCost = 10

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. A malformed hash counts as a mismatch.
func CheckPassword(hash, password string) bool {
	errCompare := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return errCompare == nil
}
