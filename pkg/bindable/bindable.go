// Package bindable provides observable value cells and change events.
// A Value holds a single mutable datum and notifies interested parties
// whenever it is replaced; an Event is the value-less counterpart.
//
// Change notification comes in two forms: synchronous subscribers, which
// run on the goroutine performing the Set/Fire before it returns, and
// one-shot wait channels, which are closed by the next Set/Fire in the
// order they were requested. Each wait channel resolves exactly once.
package bindable

import "sync"

// Event notifies listeners that something happened, carrying no payload.
type Event struct {
	mu      sync.Mutex
	waiters []chan struct{}
	subs    map[int]func()
	nextID  int
}

// NewEvent creates a new event.
func NewEvent() *Event {
	return &Event{subs: make(map[int]func())}
}

// Fire resolves all pending wait channels in registration order and then
// invokes every subscriber synchronously.
func (e *Event) Fire() {
	e.mu.Lock()
	waiters := e.waiters
	e.waiters = nil
	subs := make([]func(), 0, len(e.subs))
	for id := 0; id < e.nextID; id++ {
		if fn, ok := e.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	e.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, fn := range subs {
		fn()
	}
}

// Wait returns a channel that is closed by the next Fire. Each returned
// channel is resolved once; request a new one to observe a later Fire.
func (e *Event) Wait() <-chan struct{} {
	ch := make(chan struct{})
	e.mu.Lock()
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()
	return ch
}

// Subscribe registers fn to run synchronously on every Fire. The returned
// function removes the subscription.
func (e *Event) Subscribe(fn func()) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Value is an observable container for a value of type T.
//
// Set always notifies, even when the new value equals the old one;
// consumers that care about equality filter on their side.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	waiters []chan struct{}
	subs    map[int]func(T)
	nextID  int
}

// NewValue creates a value cell holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, subs: make(map[int]func(T))}
}

// Get returns the current value. It never blocks.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value, resolves all pending wait channels in
// registration order, and invokes subscribers synchronously with the new
// value.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.current = val
	waiters := v.waiters
	v.waiters = nil
	subs := make([]func(T), 0, len(v.subs))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	v.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, fn := range subs {
		fn(val)
	}
}

// Changed returns a channel closed by the next Set.
func (v *Value[T]) Changed() <-chan struct{} {
	ch := make(chan struct{})
	v.mu.Lock()
	v.waiters = append(v.waiters, ch)
	v.mu.Unlock()
	return ch
}

// Subscribe registers fn to run synchronously on every Set with the value
// just stored. The returned function removes the subscription.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
