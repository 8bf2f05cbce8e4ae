package identity

import (
	"context"
	"testing"
	"time"

	"github.com/ent0n29/boardsync/internal/store"
)

func waitIdentity(t *testing.T, ch <-chan *Identity) *Identity {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for identity emission")
		return nil
	}
}

func TestProviderSubscribeDeliversCurrent(t *testing.T) {
	p := NewProvider()
	p.SignIn(Principal{UID: "u1", Email: "a@x.io"})

	ch, cancel := p.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		if got == nil || got.UID != "u1" {
			t.Fatalf("initial principal = %+v, want u1", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("no immediate delivery of current principal")
	}

	p.SignOut()
	select {
	case got := <-ch:
		if got != nil {
			t.Fatalf("sign-out should deliver nil, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("sign-out never delivered")
	}
}

func TestResolverJoinsProfile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	defer st.Close()
	_ = st.CreateUser(ctx, store.User{ID: "u1", Email: "a@x.io", Role: store.RoleManager})

	provider := NewProvider()
	r := NewResolver(provider, st)
	go r.Run(ctx)

	ch, unsub := r.Subscribe()
	defer unsub()

	provider.SignIn(Principal{UID: "u1", Email: "a@x.io"})

	id := waitIdentity(t, ch)
	if id == nil {
		t.Fatalf("expected a resolved identity, got nil")
	}
	if id.UserID != "u1" || id.Role != store.RoleManager {
		t.Fatalf("resolved identity = %+v, want u1/manager", id)
	}
}

func TestResolverMissingProfileResolvesRoleless(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	defer st.Close()

	provider := NewProvider()
	r := NewResolver(provider, st)
	go r.Run(ctx)

	ch, unsub := r.Subscribe()
	defer unsub()

	provider.SignIn(Principal{UID: "ghost", Email: "g@x.io"})

	id := waitIdentity(t, ch)
	if id == nil {
		t.Fatalf("missing profile must still resolve, got nil")
	}
	if id.UserID != "ghost" || id.Role != "" {
		t.Fatalf("resolved identity = %+v, want ghost with empty role", id)
	}
}

func TestResolverEmitsNilOnSignOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	defer st.Close()
	_ = st.CreateUser(ctx, store.User{ID: "u1", Email: "a@x.io", Role: store.RoleDeveloper})

	provider := NewProvider()
	r := NewResolver(provider, st)
	go r.Run(ctx)

	ch, unsub := r.Subscribe()
	defer unsub()

	provider.SignIn(Principal{UID: "u1", Email: "a@x.io"})
	if id := waitIdentity(t, ch); id == nil {
		t.Fatalf("sign-in should resolve an identity")
	}

	provider.SignOut()
	if id := waitIdentity(t, ch); id != nil {
		t.Fatalf("sign-out should emit nil, got %+v", id)
	}
}

func TestResolverTracksProfileCreation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	defer st.Close()

	provider := NewProvider()
	r := NewResolver(provider, st)
	go r.Run(ctx)

	ch, unsub := r.Subscribe()
	defer unsub()

	provider.SignIn(Principal{UID: "u1", Email: "a@x.io"})
	first := waitIdentity(t, ch)
	if first == nil || first.Role != "" {
		t.Fatalf("pre-profile identity = %+v, want empty role", first)
	}

	// The profile record lands after sign-in; the join must catch up.
	_ = st.CreateUser(ctx, store.User{ID: "u1", Email: "a@x.io", Role: store.RoleAdmin})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case id := <-ch:
			if id != nil && id.Role == store.RoleAdmin {
				return
			}
		case <-deadline:
			t.Fatalf("role never resolved after profile creation")
		}
	}
}

func TestResolverSubscribeSeedsLastEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	defer st.Close()
	_ = st.CreateUser(ctx, store.User{ID: "u1", Email: "a@x.io", Role: store.RoleDeveloper})

	provider := NewProvider()
	r := NewResolver(provider, st)
	go r.Run(ctx)

	first, unsubFirst := r.Subscribe()
	defer unsubFirst()
	provider.SignIn(Principal{UID: "u1", Email: "a@x.io"})
	waitIdentity(t, first)

	// A late subscriber gets the last resolution without waiting for change.
	late, unsubLate := r.Subscribe()
	defer unsubLate()
	id := waitIdentity(t, late)
	if id == nil || id.UserID != "u1" {
		t.Fatalf("late subscriber seed = %+v, want u1", id)
	}
}
