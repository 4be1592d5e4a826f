// Password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is slow on purpose, which makes brute-forcing a leaked hash
// expensive. It also salts every hash and stores the salt and cost inside
// the output, so the users table needs only one column:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production (~250ms/hash).
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected
// instead of being silently truncated.
const MaxPasswordBytes = 72

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected:
// tests use bcrypt.MinCost to run in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with DefaultCost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: DefaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost,
// clamped to bcrypt's allowed range. Do NOT use a low cost in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	cost = max(cost, bcrypt.MinCost)
	cost = min(cost, bcrypt.MaxCost)
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// It returns ErrInvalidPassword on a mismatch. An empty hash (an account
// that only ever signed in with GitHub) never matches.
//
// bcrypt.CompareHashAndPassword compares in constant time, so response
// timing does not leak how much of the password was right.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrInvalidPassword
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
