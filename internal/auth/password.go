package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit. Longer inputs would be silently
// truncated by the algorithm, so they are rejected instead.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService hashes and verifies passwords with bcrypt.
// It is a struct so tests can inject a low cost.
type PasswordService struct {
	cost  int
	dummy []byte
}

// NewPasswordService uses bcrypt.DefaultCost (10), the cost existing
// digests were hashed with.
func NewPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(bcrypt.DefaultCost)
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// Tests use bcrypt.MinCost (4); never use that in production.
// A cost outside [bcrypt.MinCost, bcrypt.MaxCost] falls back to
// bcrypt.DefaultCost.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// The dummy digest lets VerifyDummy spend the same time as a real
	// comparison. Its content is irrelevant.
	dummy, err := bcrypt.GenerateFromPassword([]byte("obsidian-dummy-password"), cost)
	if err != nil {
		// Only a failing system random source gets here.
		panic(fmt.Sprintf("auth: generating dummy digest: %v", err))
	}
	return &PasswordService{cost: cost, dummy: dummy}
}

// Hash returns the bcrypt digest of plaintext. The digest embeds salt and cost.
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

// Verify returns nil if plaintext matches hash and ErrPasswordMismatch if it
// does not. bcrypt compares in constant time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// VerifyDummy burns one bcrypt comparison. Login calls it for unknown emails
// so response time does not reveal whether an account exists.
func (p *PasswordService) VerifyDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(p.dummy, []byte(plaintext))
}
