// Package dedup suppresses repeated records inside a short time window.
//
// Nodes re-broadcast the same readings and several gateways forward the
// same packet, so an identical record seen again within the window is
// dropped before it reaches storage.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the suppression window applied when none is configured.
const DefaultWindow = 15 * time.Second

// Identity scopes duplicate detection to one node and one record family.
type Identity struct {
	NodeID uint32
	Family string
}

func (id Identity) String() string {
	return fmt.Sprintf("!%08x/%s", id.NodeID, id.Family)
}

// Repository is the storage a Gate checks and writes through.
type Repository[T any] interface {
	// FindMostRecent returns the newest record for id created at or after since.
	FindMostRecent(ctx context.Context, id Identity, since time.Time) (T, bool, error)
	Save(ctx context.Context, rec T) error
}

// Gate decides whether a candidate record should be written.
type Gate[T any] struct {
	repo   Repository[T]
	same   func(a, b T) bool
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	locks map[Identity]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Gate.
type Option func(*gateOptions)

type gateOptions struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *gateOptions) { o.now = now }
}

// NewGate builds a gate over repo. same compares measured fields only. A
// non-positive window falls back to DefaultWindow.
func NewGate[T any](repo Repository[T], same func(a, b T) bool, window time.Duration, opts ...Option) *Gate[T] {
	o := gateOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate[T]{
		repo:   repo,
		same:   same,
		window: window,
		now:    o.now,
		locks:  make(map[Identity]*identityLock),
	}
}

// Window returns the configured suppression window.
func (g *Gate[T]) Window() time.Duration { return g.window }

// ShouldPersist reports whether candidate differs from the most recent
// record for id inside the window. It never writes.
func (g *Gate[T]) ShouldPersist(ctx context.Context, candidate T, id Identity) (bool, error) {
	since := g.now().Add(-g.window)
	recent, found, err := g.repo.FindMostRecent(ctx, id, since)
	if err != nil {
		return false, fmt.Errorf("find recent %s: %w", id, err)
	}
	if found && g.same(recent, candidate) {
		return false, nil
	}
	return true, nil
}

// SaveIfChanged writes candidate unless it duplicates a recent record.
// Check and write are serialized per identity within this process.
func (g *Gate[T]) SaveIfChanged(ctx context.Context, candidate T, id Identity) (bool, error) {
	unlock := g.lock(id)
	defer unlock()

	ok, err := g.ShouldPersist(ctx, candidate, id)
	if err != nil || !ok {
		return false, err
	}
	if err := g.repo.Save(ctx, candidate); err != nil {
		return false, fmt.Errorf("save %s: %w", id, err)
	}
	return true, nil
}

func (g *Gate[T]) lock(id Identity) func() {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &identityLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}
