// Package content validates document payloads against the format of the
// editor that produced them.
package content

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Type names the editor kind of a document
type Type string

const (
	// TypeLexical is a rich text document serialized as a Lexical editor state
	TypeLexical Type = "lexical"

	// TypeExcalidraw is a drawing serialized as an Excalidraw scene
	TypeExcalidraw Type = "excalidraw"

	// TypeText is plain UTF-8 text
	TypeText Type = "text"
)

// MaxPayloadBytes bounds the size of any payload
const MaxPayloadBytes = 16 << 20

var (
	// ErrUnknownType is returned for a content type no editor produces
	ErrUnknownType = errors.New("unknown content type")

	// ErrInvalidPayload is wrapped by every validation failure
	ErrInvalidPayload = errors.New("invalid payload")
)

//go:embed schemas/*.json
var schemasFS embed.FS

// Types lists the supported content types
func Types() []Type {
	return []Type{TypeLexical, TypeExcalidraw, TypeText}
}

// ParseType returns the Type named by s, defaulting to text when s is empty
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeText, nil
	}
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownType, s)
}

// Validator checks payloads against the schema of their content type
type Validator struct {
	schemas map[Type]*jsonschema.Schema
}

// NewValidator compiles the embedded schemas
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	schemas := make(map[Type]*jsonschema.Schema)

	for _, t := range []Type{TypeLexical, TypeExcalidraw} {
		name := "schemas/" + string(t) + ".json"
		f, err := schemasFS.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		sch, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		schemas[t] = sch
	}

	return &Validator{schemas: schemas}, nil
}

// Validate returns nil when payload is a well-formed document of type t
func (v *Validator) Validate(t Type, payload string) error {
	if len(payload) > MaxPayloadBytes {
		return fmt.Errorf("%w: payload of %d bytes exceeds the %d byte limit", ErrInvalidPayload, len(payload), MaxPayloadBytes)
	}

	switch t {
	case TypeText:
		if !utf8.ValidString(payload) {
			return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidPayload)
		}
		return nil
	case TypeLexical, TypeExcalidraw:
		inst, err := jsonschema.UnmarshalJSON(strings.NewReader(payload))
		if err != nil {
			return fmt.Errorf("%w: %s document is not valid JSON: %w", ErrInvalidPayload, t, err)
		}
		if err := v.schemas[t].Validate(inst); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}
