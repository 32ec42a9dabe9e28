// Package domain holds the typed identifiers shared across bounded contexts.
//
// Each identifier wraps a UUID so a CourseID can never be passed where a StudentID is
// expected. Parsing happens at trust boundaries (path params, token claims) and rejects
// empty, malformed and nil UUIDs.
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
)

type (
	PrincipalID uuid.UUID
	StudentID   uuid.UUID
	CourseID    uuid.UUID
)

// maxIDLength bounds input before handing it to uuid.Parse ({urn:uuid:...} is the longest form).
const maxIDLength = 45

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID("principal id", s)
	return PrincipalID(u), err
}

func ParseStudentID(s string) (StudentID, error) {
	u, err := parseUUID("student id", s)
	return StudentID(u), err
}

func ParseCourseID(s string) (CourseID, error) {
	u, err := parseUUID("course id", s)
	return CourseID(u), err
}

func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }
func NewStudentID() StudentID     { return StudentID(uuid.New()) }
func NewCourseID() CourseID       { return CourseID(uuid.New()) }

func (id PrincipalID) String() string { return uuid.UUID(id).String() }
func (id PrincipalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id PrincipalID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *PrincipalID) UnmarshalText(b []byte) error {
	parsed, err := ParsePrincipalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id StudentID) String() string { return uuid.UUID(id).String() }
func (id StudentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id StudentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *StudentID) UnmarshalText(b []byte) error {
	parsed, err := ParseStudentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CourseID) String() string { return uuid.UUID(id).String() }
func (id CourseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CourseID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CourseID) UnmarshalText(b []byte) error {
	parsed, err := ParseCourseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
