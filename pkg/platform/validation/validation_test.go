package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "registrar/pkg/domain-errors"
)

type sample struct {
	Email  string  `json:"email" validate:"required,email"`
	Number string  `json:"studentNumber" validate:"required,alphanum,min=5,max=20"`
	Phone  *string `json:"phone" validate:"omitempty,phone"`
	Weeks  int     `json:"courseDuration" validate:"min=1,max=104"`
}

func strPtr(s string) *string { return &s }

func TestStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Struct(sample{Email: "a@b.io", Number: "STU001", Phone: strPtr("+1 (555) 010-2000"), Weeks: 12}))
	})

	t.Run("uses json names and reports all fields", func(t *testing.T) {
		err := Struct(sample{Email: "nope", Number: "AB", Phone: strPtr("call me"), Weeks: 200})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		de, ok := dErrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "email must be a valid email address", de.Message)
		fields, ok := de.Details["fields"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "studentNumber must be at least 5 characters", fields["studentNumber"])
		assert.Equal(t, "phone must be a valid phone number", fields["phone"])
		assert.Equal(t, "courseDuration must be at most 104", fields["courseDuration"])
	})

	t.Run("optional phone may be absent", func(t *testing.T) {
		require.NoError(t, Struct(sample{Email: "a@b.io", Number: "STU001", Weeks: 1}))
	})
}
