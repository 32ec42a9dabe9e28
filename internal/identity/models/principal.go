package models

import (
	"strings"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// Role grants a principal access to an endpoint class.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStudent
}

func (r Role) String() string {
	return string(r)
}

// Principal is an authenticatable identity.
//
// Invariants:
//   - Email is non-empty and stored lower-cased
//   - PasswordHash is non-empty and never serialized
//   - Role is admin or student
type Principal struct {
	ID           id.PrincipalID `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Role         Role           `json:"role"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func NewPrincipal(
	principalID id.PrincipalID,
	email string,
	passwordHash string,
	role Role,
	firstName string,
	lastName string,
	now time.Time,
) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	return &Principal{
		ID:           principalID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Rename applies optional name changes. Nil leaves the field untouched.
func (p *Principal) Rename(firstName, lastName *string, now time.Time) {
	if firstName != nil {
		p.FirstName = strings.TrimSpace(*firstName)
	}
	if lastName != nil {
		p.LastName = strings.TrimSpace(*lastName)
	}
	p.UpdatedAt = now
}
