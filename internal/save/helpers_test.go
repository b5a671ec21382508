package save

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grain-editor/grain-shell/internal/clock/clocktest"
	"github.com/grain-editor/grain-shell/internal/status"
)

const testDocumentID = "doc-1"

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recordingStore records every write. fail, when set, decides the result of
// each call by its 1-based index; onWrite runs inside the write.
type recordingStore struct {
	mu      sync.Mutex
	clock   *clocktest.FakeClock
	writes  []string
	at      []time.Duration
	calls   int
	fail    func(call int) error
	onWrite func(payload string)
}

func (s *recordingStore) Write(_ context.Context, _ string, payload string) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	fail := s.fail
	onWrite := s.onWrite
	s.mu.Unlock()

	if onWrite != nil {
		onWrite(payload)
	}
	if fail != nil {
		if err := fail(call); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, payload)
	if s.clock != nil {
		s.at = append(s.at, s.clock.Now().Sub(epoch))
	}
	return nil
}

func (s *recordingStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *recordingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingSink records every status event with its virtual offset
type recordingSink struct {
	mu     sync.Mutex
	clock  *clocktest.FakeClock
	events []status.Event
}

func (s *recordingSink) Notify(ev status.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Kinds() []status.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]status.Kind, 0, len(s.events))
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (s *recordingSink) Count(kind status.Kind) int {
	n := 0
	for _, k := range s.Kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) Last() status.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type fixture struct {
	clock *clocktest.FakeClock
	store *recordingStore
	sink  *recordingSink
	coord *Coordinator
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()

	fc := clocktest.NewFakeClock(epoch)
	f := &fixture{
		clock: fc,
		store: &recordingStore{clock: fc},
		sink:  &recordingSink{clock: fc},
	}
	opts = append([]Option{WithClock(fc), WithSink(f.sink)}, opts...)
	f.coord = New(testDocumentID, f.store, cfg, opts...)
	t.Cleanup(func() { f.coord.Dispose(context.Background()) })
	return f
}

// at moves the virtual clock to the given offset from epoch
func (f *fixture) at(offset time.Duration) {
	f.clock.SetTime(epoch.Add(offset))
}

func defaultTestConfig() Config {
	return Config{
		DebounceInterval: 2 * time.Second,
		StatusThrottle:   500 * time.Millisecond,
	}
}
