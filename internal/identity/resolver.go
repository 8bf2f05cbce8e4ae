package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ent0n29/boardsync/internal/store"
)

const resolveTimeout = 2 * time.Second

// Resolver joins the live principal stream with the users collection and
// emits (user, role) pairs. A principal with no profile record resolves to an
// Identity with an empty role rather than an error; a nil emission means
// signed out, at which point consumers tear down their subscriptions.
type Resolver struct {
	provider *Provider
	store    store.Store

	mu     sync.Mutex
	nextID int
	subs   map[int]chan *Identity
	last   *Identity
	seeded bool
}

func NewResolver(provider *Provider, st store.Store) *Resolver {
	return &Resolver{
		provider: provider,
		store:    st,
		subs:     make(map[int]chan *Identity),
	}
}

// Run drives the join until ctx is cancelled. It reacts to both sign-in/out
// changes and profile-record changes, so a role edit in the store flows to
// subscribers without a re-login.
func (r *Resolver) Run(ctx context.Context) {
	principals, cancelAuth := r.provider.Subscribe()
	defer cancelAuth()

	var (
		current     *Principal
		userChanges <-chan struct{}
		cancelWatch func()
	)
	closeWatch := func() {
		if cancelWatch != nil {
			cancelWatch()
			cancelWatch = nil
			userChanges = nil
		}
	}
	defer closeWatch()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-principals:
			if !ok {
				return
			}
			closeWatch()
			current = p
			if current == nil {
				r.emit(nil)
				continue
			}
			userChanges, cancelWatch = r.store.Watch(store.CollectionUsers)
			r.emit(r.resolve(ctx, *current))
		case _, ok := <-userChanges:
			if !ok || current == nil {
				continue
			}
			r.emit(r.resolve(ctx, *current))
		}
	}
}

// Subscribe delivers the most recent resolution immediately once one exists,
// then every change.
func (r *Resolver) Subscribe() (<-chan *Identity, func()) {
	ch := make(chan *Identity, 8)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = ch
	if r.seeded {
		ch <- cloneIdentity(r.last)
	}
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

func (r *Resolver) resolve(ctx context.Context, p Principal) *Identity {
	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	id := &Identity{UserID: p.UID, Email: p.Email}
	u, err := r.store.GetUser(rctx, p.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Present in auth, absent from the profile store: no role.
			return id
		}
		// Transient read failure: keep the auth identity, role unresolved.
		return id
	}
	if u.Email != "" {
		id.Email = u.Email
	}
	id.Role = u.Role
	return id
}

func (r *Resolver) emit(id *Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = cloneIdentity(id)
	r.seeded = true
	for _, ch := range r.subs {
		select {
		case ch <- cloneIdentity(id):
		default:
		}
	}
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
