package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/events"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

const fetchKey = "current-user"

// Cache owns the current identity. Fetches are coalesced; a successful one
// publishes events.CurrentUser, a failed one events.NotLoggedIn.
type Cache struct {
	sdk    *authsdk.SDKClient
	bus    *events.Bus
	flight singleflight.Group
	logger *slog.Logger

	mu      sync.RWMutex
	current Identity
	subs    map[uint64]func(Identity)
	nextSub uint64

	// gen moves on every bypassing Get and every logout. A fetch only
	// applies its answer if gen has not moved since it started.
	gen uint64

	unsubscribe func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache's logger; nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = slogx.OrDefault(l) }
}

// NewCache returns an Unresolved cache. It marks the identity Anonymous
// whenever the bus reports the session ended.
func NewCache(sdk *authsdk.SDKClient, bus *events.Bus, opts ...Option) *Cache {
	c := &Cache{
		sdk:    sdk,
		bus:    bus,
		logger: slog.Default(),
		subs:   make(map[uint64]func(Identity)),
	}
	for _, o := range opts {
		o(c)
	}
	c.unsubscribe = bus.Subscribe(events.SessionEnded, func(events.Event) {
		c.mu.Lock()
		c.gen++
		c.mu.Unlock()
		c.set(AnonymousIdentity())
	})
	return c
}

// Close detaches the cache from the bus.
func (c *Cache) Close() { c.unsubscribe() }

// Current returns the identity without fetching.
func (c *Cache) Current() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Subscribe calls fn after every identity change, on the goroutine that
// made it. The returned func removes fn.
func (c *Cache) Subscribe(fn func(Identity)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) set(id Identity) {
	c.mu.Lock()
	fns := c.storeLocked(id)
	c.mu.Unlock()
	notify(fns, id)
}

// setAt stores id only if no bypass or logout happened since gen.
func (c *Cache) setAt(gen uint64, id Identity) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	fns := c.storeLocked(id)
	c.mu.Unlock()
	notify(fns, id)
	return true
}

// storeLocked returns the subscribers to call, or nil when id is unchanged.
func (c *Cache) storeLocked(id Identity) []func(Identity) {
	if c.current == id {
		return nil
	}
	c.current = id
	fns := make([]func(Identity), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Identity), id Identity) {
	for _, fn := range fns {
		fn(id)
	}
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Get returns the current user. A resolved identity is answered from the
// cache unless bypass is set. Anonymous yields ErrNotAuthenticated.
func (c *Cache) Get(ctx context.Context, bypass bool) (*User, error) {
	if !bypass {
		switch cur := c.Current(); cur.State {
		case Authenticated:
			return cur.User, nil
		case Anonymous:
			return nil, ErrNotAuthenticated
		}
	} else {
		// A flight that started before a login would answer with the old
		// session; forget it and stop it from writing its answer.
		c.mu.Lock()
		c.gen++
		c.mu.Unlock()
		c.flight.Forget(fetchKey)
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(fetchKey, func() (any, error) {
		return c.fetch(flightCtx, c.generation())
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*User), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve is Get without bypass, reporting only the resulting identity.
func (c *Cache) Resolve(ctx context.Context) (Identity, error) {
	if _, err := c.Get(ctx, false); err != nil && ctx.Err() != nil {
		return Identity{}, ctx.Err()
	}
	return c.Current(), nil
}

// fetch asks the server for the current user. An answer superseded by a
// later bypass or logout is returned to its callers but not cached.
func (c *Cache) fetch(ctx context.Context, gen uint64) (*User, error) {
	acc, err := c.sdk.CurrentUser(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "current user not available", "status", authsdk.StatusCode(err), "error", err)
		if c.setAt(gen, AnonymousIdentity()) {
			c.bus.Publish(events.NotLoggedIn, nil, err)
		} else {
			c.logger.DebugContext(ctx, "discarding superseded current user answer")
		}
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	u := &User{Account: *acc}
	if c.setAt(gen, AuthenticatedAs(u)) {
		c.bus.Publish(events.CurrentUser, u, nil)
	} else {
		c.logger.DebugContext(ctx, "discarding superseded current user answer")
	}
	return u, nil
}
