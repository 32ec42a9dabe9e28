package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "registrar/pkg/domain-errors"
)

// DefaultCost is the bcrypt work factor used for stored passwords.
const DefaultCost = 12

// Hasher hashes and verifies passwords with a fixed bcrypt cost.
type Hasher struct {
	cost int
	// dummy is compared against when the principal does not exist so that
	// unknown emails cost the same as wrong passwords.
	dummy []byte
}

func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("registrar-timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("could not prepare dummy hash: %w", err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Hash creates a bcrypt hash of the provided password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext password matches a bcrypt hash.
func (h *Hasher) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}

// VerifyDummy burns one comparison's worth of time and always fails.
func (h *Hasher) VerifyDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
}
