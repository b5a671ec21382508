package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocumentID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		id          string
		expectError string
	}{
		{name: "simple id", id: "notes"},
		{name: "nested id", id: "notes/2026/today"},
		{name: "absolute file path", id: "/home/ada/notes.md"},
		{name: "inner spaces", id: "boards/q3 planning"},
		{name: "unicode", id: "notizen/über"},
		{name: "dots inside a segment", id: "notes/v1..v2"},
		{name: "maximum length", id: strings.Repeat("a", MaxDocumentIDLength)},
		{name: "empty", id: "", expectError: "cannot be empty"},
		{name: "too long", id: strings.Repeat("a", MaxDocumentIDLength+1), expectError: "maximum length"},
		{name: "invalid utf-8", id: "notes\xff", expectError: "valid UTF-8"},
		{name: "leading whitespace", id: " notes", expectError: "whitespace"},
		{name: "trailing newline", id: "notes\n", expectError: "whitespace"},
		{name: "control character", id: "no\x00tes", expectError: "control characters"},
		{name: "dot segment", id: "notes/./today", expectError: "'.' segment"},
		{name: "dot-dot segment", id: "notes/../secrets", expectError: "'..' segment"},
		{name: "only dot-dot", id: "..", expectError: "'..' segment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateDocumentID(tt.id)
			if tt.expectError == "" {
				assert.NoError(t, err)
				assert.True(t, IsValidDocumentID(tt.id))
				return
			}
			assert.ErrorContains(t, err, tt.expectError)
			assert.False(t, IsValidDocumentID(tt.id))
		})
	}
}
