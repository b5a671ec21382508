// Package keymap routes keyboard shortcuts to the surface that registered
// them most recently.
package keymap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Chord is a normalized shortcut such as "ctrl+s" or "meta+shift+s"
type Chord string

// Handler runs when its chord is dispatched
type Handler func(ctx context.Context)

// SaveChords are the chords bound to a manual save
var SaveChords = []Chord{"ctrl+s", "meta+s"}

// ErrInvalidChord is returned for a chord that does not parse
var ErrInvalidChord = errors.New("invalid chord")

// modifier order used by normalized chords
var modifiers = []string{"ctrl", "alt", "shift", "meta"}

var modifierAliases = map[string]string{
	"control": "ctrl",
	"cmd":     "meta",
	"command": "meta",
	"super":   "meta",
	"option":  "alt",
}

// ParseChord normalizes s: modifiers are lower-cased, de-aliased and sorted,
// and exactly one non-modifier key must be present.
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	var (
		mods = make(map[string]bool)
		key  string
	)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if alias, ok := modifierAliases[p]; ok {
			p = alias
		}
		switch {
		case p == "":
			return "", fmt.Errorf("%w: %q", ErrInvalidChord, s)
		case slices.Contains(modifiers, p):
			mods[p] = true
		case key != "":
			return "", fmt.Errorf("%w: %q has more than one key", ErrInvalidChord, s)
		default:
			key = p
		}
	}
	if key == "" {
		return "", fmt.Errorf("%w: %q has no key", ErrInvalidChord, s)
	}

	var b strings.Builder
	for _, m := range modifiers {
		if mods[m] {
			b.WriteString(m)
			b.WriteByte('+')
		}
	}
	b.WriteString(key)
	return Chord(b.String()), nil
}

type binding struct {
	id      uint64
	owner   string
	handler Handler
}

// Manager holds the shortcut bindings. The latest registration of a chord
// wins; unregistering it uncovers the previous one.
type Manager struct {
	mu       sync.Mutex
	nextID   uint64
	bindings map[Chord][]binding
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{bindings: make(map[Chord][]binding)}
}

// Register binds handler to every chord on behalf of owner and returns a
// function that removes these bindings again. The returned function is
// idempotent.
func (m *Manager) Register(owner string, handler Handler, chords ...Chord) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	normalized := make([]Chord, 0, len(chords))
	for _, c := range chords {
		nc, err := ParseChord(string(c))
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, nc)
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	for _, c := range normalized {
		m.bindings[c] = append(m.bindings[c], binding{id: id, owner: owner, handler: handler})
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(id, normalized) })
	}, nil
}

func (m *Manager) remove(id uint64, chords []Chord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chords {
		m.bindings[c] = slices.DeleteFunc(m.bindings[c], func(b binding) bool { return b.id == id })
		if len(m.bindings[c]) == 0 {
			delete(m.bindings, c)
		}
	}
}

// Dispatch runs the handler currently bound to chord and reports whether
// one was bound. The handler runs on the calling goroutine without the
// manager lock held.
func (m *Manager) Dispatch(ctx context.Context, chord string) (bool, error) {
	c, err := ParseChord(chord)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	stack := m.bindings[c]
	if len(stack) == 0 {
		m.mu.Unlock()
		slog.Debug("No binding for shortcut", "chord", c)
		return false, nil
	}
	top := stack[len(stack)-1]
	m.mu.Unlock()

	slog.Debug("Dispatching shortcut", "chord", c, "owner", top.owner)
	top.handler(ctx)
	return true, nil
}

// Owner returns the owner of the binding that Dispatch would run for chord
func (m *Manager) Owner(chord Chord) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.bindings[chord]
	if len(stack) == 0 {
		return "", false
	}
	return stack[len(stack)-1].owner, true
}
