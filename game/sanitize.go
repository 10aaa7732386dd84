package game

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxNameLength = 50

var policy = bluemonday.StrictPolicy()

// SanitizeName strips any HTML from a player name and collapses whitespace.
// The result is plain text: entities are decoded, so a stored name may hold
// characters such as < and &. Templates escape names on output and JSON
// responses carry them as plain strings.
func SanitizeName(name string) string {
	cleaned := html.UnescapeString(policy.Sanitize(name))
	return strings.Join(strings.Fields(cleaned), " ")
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxNameLength {
		return ErrInvalidName
	}
	return nil
}
