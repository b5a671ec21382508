package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "", want: TypeText},
		{in: "lexical", want: TypeLexical},
		{in: " Excalidraw ", want: TypeExcalidraw},
		{in: "text", want: TypeText},
		{in: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name        string
		contentType Type
		payload     string
		wantErr     error
		wantSchema  bool
	}{
		{
			name:        "plain text",
			contentType: TypeText,
			payload:     "hello\nworld",
		},
		{
			name:        "invalid utf8 text",
			contentType: TypeText,
			payload:     string([]byte{0xff, 0xfe}),
			wantErr:     ErrInvalidPayload,
		},
		{
			name:        "lexical state",
			contentType: TypeLexical,
			payload:     `{"root":{"type":"root","version":1,"children":[{"type":"paragraph","version":1,"children":[{"type":"text","text":"hi"}]}]}}`,
		},
		{
			name:        "lexical without root",
			contentType: TypeLexical,
			payload:     `{"editor":{}}`,
			wantErr:     ErrInvalidPayload,
			wantSchema:  true,
		},
		{
			name:        "lexical node without type",
			contentType: TypeLexical,
			payload:     `{"root":{"type":"root","children":[{"children":[]}]}}`,
			wantErr:     ErrInvalidPayload,
			wantSchema:  true,
		},
		{
			name:        "lexical malformed json",
			contentType: TypeLexical,
			payload:     `{"root":`,
			wantErr:     ErrInvalidPayload,
		},
		{
			name:        "excalidraw scene",
			contentType: TypeExcalidraw,
			payload:     `{"type":"excalidraw","version":2,"elements":[{"id":"a1","type":"rectangle"}],"appState":{},"files":{}}`,
		},
		{
			name:        "excalidraw empty scene",
			contentType: TypeExcalidraw,
			payload:     `{"elements":[]}`,
		},
		{
			name:        "excalidraw wrong type tag",
			contentType: TypeExcalidraw,
			payload:     `{"type":"tldraw","elements":[]}`,
			wantErr:     ErrInvalidPayload,
			wantSchema:  true,
		},
		{
			name:        "unknown type",
			contentType: Type("pdf"),
			payload:     "x",
			wantErr:     ErrUnknownType,
		},
		{
			name:        "too large",
			contentType: TypeText,
			payload:     strings.Repeat("a", MaxPayloadBytes+1),
			wantErr:     ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Validate(tt.contentType, tt.payload)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var verr *jsonschema.ValidationError
			assert.Equal(t, tt.wantSchema, errors.As(err, &verr))
		})
	}
}
