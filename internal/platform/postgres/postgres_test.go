package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	dErrors "registrar/pkg/domain-errors"
)

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_courses_code"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.Equal(t, "idx_courses_code", ConstraintName(unique))
	assert.Empty(t, ConstraintName(errors.New("plain")))
}

func TestRunInTxRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewTxRunner(nil, 0)
	called := false
	err := runner.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS students")
	assert.Contains(t, schema, "ON DELETE SET NULL")
	assert.Contains(t, schema, "ON DELETE CASCADE")
}
