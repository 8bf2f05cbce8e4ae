package realtime

import (
	"context"
	"sync"

	"github.com/ent0n29/boardsync/internal/store"
)

// teamProjects is the two-stage live pipeline behind a developer's project
// view: stage one watches the teams whose member list contains the user's
// email, stage two watches projects assigned to any of those teams. Stage two
// is recomputed only when stage one's team id set actually changes, and the
// old inner listener is always closed before a new one opens.
type teamProjects struct {
	st    store.Store
	shape string
	email string
	emit  func(Event)

	outer *subscription

	mu       sync.Mutex
	closed   bool
	inner    *subscription
	innerIDs string
}

func openTeamProjects(st store.Store, shape, email string, emit func(Event)) *teamProjects {
	c := &teamProjects{st: st, shape: shape, email: email, emit: emit}

	c.outer = openSubscription(st, shape+"/teams", []string{store.CollectionTeams},
		func(ctx context.Context) (Event, error) {
			teams, err := st.ListTeamsByMember(ctx, email)
			if err != nil {
				return Event{}, err
			}
			return Event{Kind: EventMyTeams, Teams: teams}, nil
		},
		c.onTeams,
	)
	return c
}

func (c *teamProjects) onTeams(ev Event) {
	ids := make([]string, 0, len(ev.Teams))
	for _, t := range ev.Teams {
		ids = append(ids, t.ID)
	}
	key := joinIDs(ids)

	c.mu.Lock()
	if c.closed || (c.inner != nil && key == c.innerIDs) {
		c.mu.Unlock()
		return
	}
	old := c.inner
	c.inner = nil
	c.innerIDs = key
	c.mu.Unlock()

	// Close the superseded inner listener outside our own lock: it may be
	// mid-delivery and waiting on it.
	if old != nil {
		old.Close()
	}

	if len(ids) == 0 {
		// No teams: the composite still resolves, with an empty result.
		c.deliver(Event{Kind: EventProjects, At: ev.At})
		return
	}

	idsCopy := append([]string(nil), ids...)
	inner := openSubscription(c.st, c.shape+"/projects", []string{store.CollectionProjects},
		func(ctx context.Context) (Event, error) {
			projects, err := c.st.ListProjectsByTeams(ctx, idsCopy)
			if err != nil {
				return Event{}, err
			}
			return Event{Kind: EventProjects, Projects: projects}, nil
		},
		c.deliver,
	)

	c.mu.Lock()
	if c.closed || c.innerIDs != key {
		c.mu.Unlock()
		inner.Close()
		return
	}
	c.inner = inner
	c.mu.Unlock()
}

func (c *teamProjects) deliver(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.emit(ev)
}

func (c *teamProjects) Shape() string { return c.shape }

// Close tears both stages down in reverse order of opening: inner first, then
// outer.
func (c *teamProjects) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()

	if inner != nil {
		inner.Close()
	}
	c.outer.Close()
}

func joinIDs(ids []string) string {
	out := ""
	for _, id := range ids {
		out += id + "\x00"
	}
	return out
}
