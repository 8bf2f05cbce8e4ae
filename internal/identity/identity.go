// Package identity tracks the current authenticated principal and resolves it
// to a role by joining the auth identity with the user's profile record.
package identity

import (
	"sync"

	"github.com/ent0n29/boardsync/internal/store"
)

// Principal is the raw authenticated identity before the profile join.
type Principal struct {
	UID   string
	Email string
}

// Identity is a principal joined with its profile. Role is empty when the
// principal exists in auth but has no profile record.
type Identity struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email"`
	Role   store.Role `json:"role,omitempty"`
}

// Provider holds process-wide current-principal state with an explicit
// lifecycle: populated on sign-in, cleared on sign-out. Consumers only ever
// observe it through Subscribe; nil means signed out.
type Provider struct {
	mu      sync.Mutex
	current *Principal
	nextID  int
	subs    map[int]chan *Principal
}

func NewProvider() *Provider {
	return &Provider{subs: make(map[int]chan *Principal)}
}

func (p *Provider) SignIn(principal Principal) {
	p.mu.Lock()
	cp := principal
	p.current = &cp
	p.broadcastLocked()
	p.mu.Unlock()
}

func (p *Provider) SignOut() {
	p.mu.Lock()
	p.current = nil
	p.broadcastLocked()
	p.mu.Unlock()
}

// Subscribe delivers the current principal immediately, then every change.
// The returned cancel func is idempotent.
func (p *Provider) Subscribe() (<-chan *Principal, func()) {
	ch := make(chan *Principal, 8)

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs[id] = ch
	ch <- p.currentLocked()
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}

func (p *Provider) currentLocked() *Principal {
	if p.current == nil {
		return nil
	}
	cp := *p.current
	return &cp
}

func (p *Provider) broadcastLocked() {
	for _, ch := range p.subs {
		select {
		case ch <- p.currentLocked():
		default:
		}
	}
}
