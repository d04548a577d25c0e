package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// Password hashing (bcrypt).
//
// bcrypt output embeds algorithm, cost and salt in a stable format, so no
// extra columns are needed and cost upgrades remain backwards-verifiable.

// bcryptCost balances login latency against brute-force cost.
const bcryptCost = bcrypt.DefaultCost

// HashPassword returns a salted bcrypt hash of the password.
//
// Empty passwords are rejected with ErrInvalidInput. Passwords longer than
// 72 bytes are rejected rather than silently truncated (bcrypt ignores input
// past 72 bytes).
func HashPassword(password string) (string, error) {
	const op = "identity.HashPassword"

	if password == "" {
		return "", OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty password"}
	}
	if len(password) > 72 {
		return "", OpError{Op: op, Kind: ErrInvalidInput, Msg: "password too long"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// It returns false (never an error) for mismatches and for malformed or
// unrecognized hash formats.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
