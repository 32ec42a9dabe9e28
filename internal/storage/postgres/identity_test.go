package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	identity "registrar/internal/identity/models"
	"registrar/pkg/platform/sentinel"
)

func TestStudentConflict(t *testing.T) {
	unique := func(constraint string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraint})
	}

	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"principal already enrolled", constraintStudentPrincipal, identity.ErrPrincipalHasRecord},
		{"student number taken", constraintStudentNumber, identity.ErrStudentNumberTaken},
		{"other constraint", "students_pkey", sentinel.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := studentConflict(unique(tt.constraint))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, sentinel.ErrConflict)
		})
	}

	assert.NotErrorIs(t, studentConflict(unique(constraintStudentNumber)), identity.ErrPrincipalHasRecord)
}
