package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already normalized", input: "a@x.com", expected: "a@x.com"},
		{name: "mixed case", input: "Jane.Doe@Example.COM", expected: "jane.doe@example.com"},
		{name: "surrounding whitespace", input: "  a@x.com\t", expected: "a@x.com"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEmail(tt.input))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "CS101", NormalizeCode(" cs101 "))
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "   ", expected: ""},
		{name: "plain term", input: "smith", expected: "%smith%"},
		{name: "escapes wildcards", input: "50%_off", expected: `%50\%\_off%`},
		{name: "escapes backslash", input: `a\b`, expected: `%a\\b%`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LikePattern(tt.input))
		})
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("", "anything"))
	assert.True(t, ContainsFold("SMI", "Jane", "Smith"))
	assert.False(t, ContainsFold("zed", "Jane", "Smith"))
}
