// Package password wraps the bcrypt primitive used for credential hashing
// and verification. Hashing happens once, at registration (or an explicit
// password change); plaintext is never stored.
package password

import "golang.org/x/crypto/bcrypt"

// Hash derives a salted bcrypt hash from the plaintext password.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches the stored hash. A mismatch is a
// normal false result, not an error. Comparison is constant-time with
// respect to the secret.
func Verify(plain, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}
