// Package strings provides string normalization shared by services and stores.
package strings

import (
	"strings"
)

// NormalizeEmail trims and lowercases an email so uniqueness is case-insensitive.
//
//	NormalizeEmail("  Jane.Doe@Example.COM ")
//	// Returns: "jane.doe@example.com"
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCode trims and uppercases a course code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns a free-text search term into a contains-pattern for ILIKE,
// escaping the LIKE wildcards in the user input. Empty input yields "".
//
//	LikePattern("50%_off")
//	// Returns: "%50\%\_off%"
func LikePattern(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(term) + "%"
}

// ContainsFold reports whether any of fields contains term, case-insensitively.
// It is the in-memory counterpart of an ILIKE search.
func ContainsFold(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
