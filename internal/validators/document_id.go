// Package validators checks identifiers supplied by editing surfaces.
package validators

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxDocumentIDLength bounds a document id in bytes
const MaxDocumentIDLength = 1024

// ValidateDocumentID checks that id can key a document in every store.
//
// Requirements:
//   - not empty and at most MaxDocumentIDLength bytes
//   - valid UTF-8 without control characters
//   - no leading or trailing whitespace
//   - no "." or ".." segment between '/' separators
//
// Examples of valid ids:
//   - notes/today
//   - /home/ada/notes.md
//   - boards/q3 planning
//
// Examples of invalid ids:
//   - " notes" (leading whitespace)
//   - notes/../secrets (dot-dot segment)
//   - "notes\n" (control character)
func ValidateDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	if len(id) > MaxDocumentIDLength {
		return fmt.Errorf("document id exceeds maximum length of %d bytes", MaxDocumentIDLength)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("document id must be valid UTF-8")
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("document id cannot start or end with whitespace")
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return fmt.Errorf("document id cannot contain control characters")
	}
	for _, segment := range strings.Split(id, "/") {
		if segment == "." || segment == ".." {
			return fmt.Errorf("document id cannot contain a '%s' segment", segment)
		}
	}
	return nil
}

// IsValidDocumentID is a boolean wrapper around ValidateDocumentID
func IsValidDocumentID(id string) bool {
	return ValidateDocumentID(id) == nil
}
