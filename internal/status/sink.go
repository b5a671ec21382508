package status

import (
	"sync"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks -source=sink.go Sink

// Sink receives status events for a document
type Sink interface {
	// Notify delivers a single event. It must not block for long: the
	// coordinator calls it while holding its sink lock.
	Notify(ev Event)
}

// SinkFunc adapts a plain function to Sink
type SinkFunc func(Event)

// Notify implements Sink
func (f SinkFunc) Notify(ev Event) {
	f(ev)
}

// Callbacks maps events onto one callback per kind. Nil callbacks are skipped.
type Callbacks struct {
	OnUnsaved func()
	OnSaving  func()
	OnSaved   func()
	OnError   func(reason string)
}

// Notify implements Sink
func (c Callbacks) Notify(ev Event) {
	switch ev.Kind {
	case KindUnsaved:
		if c.OnUnsaved != nil {
			c.OnUnsaved()
		}
	case KindSaving:
		if c.OnSaving != nil {
			c.OnSaving()
		}
	case KindSaved:
		if c.OnSaved != nil {
			c.OnSaved()
		}
	case KindError:
		if c.OnError != nil {
			c.OnError(ev.Reason)
		}
	}
}

// Fanout delivers each event to every subscribed sink in subscription order
type Fanout struct {
	mu   sync.RWMutex
	next uint64
	subs []subscription
}

type subscription struct {
	id   uint64
	sink Sink
}

// NewFanout creates a Fanout with the given initial sinks
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Subscribe(s)
	}
	return f
}

// Subscribe adds a sink and returns a function that removes it again
func (f *Fanout) Subscribe(s Sink) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	id := f.next
	f.subs = append(f.subs, subscription{id: id, sink: s})

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

// size returns the number of subscribed sinks
func (f *Fanout) size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Notify implements Sink
func (f *Fanout) Notify(ev Event) {
	f.mu.RLock()
	subs := make([]subscription, len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	for _, s := range subs {
		s.sink.Notify(ev)
	}
}

func (f *Fanout) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}
