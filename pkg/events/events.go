// Package events is the typed, synchronous pub/sub bus that session, identity
// and guard components use to announce lifecycle changes.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/idx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// Kind is the closed set of things that can happen.
type Kind uint8

const (
	Authenticated Kind = iota + 1
	AuthenticationFailed
	SessionEnded
	SessionEndError
	CurrentUser
	NotLoggedIn
	Registered
	StateChangeUnauthenticated
	StateChangeUnauthorized
	RouteChangeUnauthenticated
	RouteChangeUnauthorized
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{
	Authenticated,
	AuthenticationFailed,
	SessionEnded,
	SessionEndError,
	CurrentUser,
	NotLoggedIn,
	Registered,
	StateChangeUnauthenticated,
	StateChangeUnauthorized,
	RouteChangeUnauthenticated,
	RouteChangeUnauthorized,
}

// DefaultNames are the wire names hosts see unless overridden with WithNames.
var DefaultNames = map[Kind]string{
	Authenticated:              "$authenticated",
	AuthenticationFailed:       "$authenticationFailure",
	SessionEnded:               "$sessionEnd",
	SessionEndError:            "$sessionEndError",
	CurrentUser:                "$currentUser",
	NotLoggedIn:                "$notLoggedin",
	Registered:                 "$registered",
	StateChangeUnauthenticated: "$stateChangeUnauthenticated",
	StateChangeUnauthorized:    "$stateChangeUnauthorized",
	RouteChangeUnauthenticated: "$routeChangeUnauthenticated",
	RouteChangeUnauthorized:    "$routeChangeUnauthorized",
}

func (k Kind) String() string {
	if n, ok := DefaultNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is one published occurrence. Payload depends on Kind: the raw
// login response for Authenticated, an identity for CurrentUser, the
// blocked target for the guard kinds. Err is set for the failure kinds.
type Event struct {
	ID      idx.ID
	Kind    Kind
	Name    string
	At      time.Time
	Payload any
	Err     error
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id uint64
	h  Handler
}

// Bus dispatches synchronously on the publisher's goroutine. Handlers may
// publish or (un)subscribe from inside a handler.
type Bus struct {
	mu     sync.RWMutex
	byKind map[Kind][]subscription
	all    []subscription
	nextID uint64

	names  map[Kind]string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithNames overrides the names of some kinds. Kinds not present keep their
// default name.
func WithNames(names map[Kind]string) Option {
	return func(b *Bus) {
		for k, n := range names {
			if n != "" {
				b.names[k] = n
			}
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// WithLogger sets the logger. Nil falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = slogx.OrDefault(l) }
}

// NewBus returns a bus with no subscribers.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		byKind: make(map[Kind][]subscription),
		names:  make(map[Kind]string, len(DefaultNames)),
		now:    time.Now,
		logger: slog.Default(),
	}
	for k, n := range DefaultNames {
		b.names[k] = n
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name is the configured wire name of k.
func (b *Bus) Name(k Kind) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n, ok := b.names[k]; ok {
		return n
	}
	return k.String()
}

// Lookup resolves a configured name back to its Kind.
func (b *Bus) Lookup(name string) (Kind, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for k, n := range b.names {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Subscribe registers h for k and returns a func that removes it. The
// returned func is idempotent.
func (b *Bus) Subscribe(k Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byKind[k] = append(b.byKind[k], subscription{id: id, h: h})
	return func() { b.remove(k, id, false) }
}

// SubscribeAll registers h for every kind.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, h: h})
	return func() { b.remove(0, id, true) }
}

func (b *Bus) remove(k Kind, id uint64, all bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.byKind[k]
	if all {
		subs = b.all
	}
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	if all {
		b.all = out
	} else {
		b.byKind[k] = out
	}
}

// Publish builds an event and hands it to every subscriber of its kind, then
// to every SubscribeAll handler. It returns once all handlers have run. A
// panicking handler is logged and skipped.
func (b *Bus) Publish(k Kind, payload any, err error) Event {
	at := b.now()
	ev := Event{
		ID:      idx.NewAt(at),
		Kind:    k,
		Name:    b.Name(k),
		At:      at,
		Payload: payload,
		Err:     err,
	}

	// Snapshot so handlers can subscribe or unsubscribe while we iterate.
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.byKind[k])+len(b.all))
	subs = append(subs, b.byKind[k]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	b.logger.Debug("event published", "event", ev.Name, "event_id", ev.ID.String(), "subscribers", len(subs))

	for _, s := range subs {
		b.dispatch(s.h, ev)
	}
	return ev
}

func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", ev.Name, "panic", r)
		}
	}()
	h(ev)
}
