package models

import (
	id "registrar/pkg/domain"
)

// Caller is the authenticated party behind a request. The set of variants is closed:
// AdminCaller and StudentCaller are the only implementations.
type Caller interface {
	PrincipalID() id.PrincipalID
	Role() Role
	sealed()
}

// AdminCaller may act on every resource.
type AdminCaller struct {
	Principal Principal
}

func (c AdminCaller) PrincipalID() id.PrincipalID { return c.Principal.ID }
func (c AdminCaller) Role() Role                  { return RoleAdmin }
func (AdminCaller) sealed()                       {}

// StudentCaller may only act on the student record it owns. StudentID is nil when
// the principal owns no record.
type StudentCaller struct {
	Principal Principal
	StudentID id.StudentID
}

func (c StudentCaller) PrincipalID() id.PrincipalID { return c.Principal.ID }
func (c StudentCaller) Role() Role                  { return RoleStudent }
func (StudentCaller) sealed()                       {}

// Owns reports whether the caller owns the student record studentID.
func (c StudentCaller) Owns(studentID id.StudentID) bool {
	return !c.StudentID.IsNil() && c.StudentID == studentID
}

// NewCaller builds the variant matching the principal's role. ok is false for
// unknown roles.
func NewCaller(p Principal, studentID id.StudentID) (Caller, bool) {
	switch p.Role {
	case RoleAdmin:
		return AdminCaller{Principal: p}, true
	case RoleStudent:
		return StudentCaller{Principal: p, StudentID: studentID}, true
	default:
		return nil, false
	}
}
