package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/ent0n29/boardsync/internal/identity"
	"github.com/ent0n29/boardsync/internal/observability"
	"github.com/ent0n29/boardsync/internal/policy"
	"github.com/ent0n29/boardsync/internal/store"
)

// listener is any open live query owned by the manager: a plain subscription
// or a composite pipeline.
type listener interface {
	Shape() string
	Close()
}

// Manager owns the set of active live queries for one signed-in consumer.
// Each distinct query shape maps to exactly one listener; re-applying an
// unchanged identity or scope is a no-op, while any shape change closes the
// outgoing listener before its replacement opens. CloseAll tears everything
// down deterministically.
type Manager struct {
	st      store.Store
	sink    func(Event)
	metrics *observability.Metrics

	mu        sync.Mutex
	closed    bool
	ident     *identity.Identity
	projectID string
	taskID    string
	listeners map[string]listener
}

// NewManager wires snapshot events into sink. The sink must not block and
// must not call back into the manager.
func NewManager(st store.Store, sink func(Event), metrics *observability.Metrics) *Manager {
	return &Manager{
		st:        st,
		sink:      sink,
		metrics:   metrics,
		listeners: make(map[string]listener),
	}
}

// Apply reacts to an identity change: nil tears down every subscription
// (signed out); otherwise the role-appropriate shape set is reconciled
// against what is already open.
func (m *Manager) Apply(ident *identity.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ident == nil {
		m.ident = nil
		m.projectID = ""
		m.taskID = ""
	} else {
		cp := *ident
		m.ident = &cp
	}
	m.reconcileLocked()
}

// SetProject scopes the manager to one project, opening its document and task
// subscriptions. An empty id clears the scope. Changing projects also drops
// any task scope, since comments belong to the previous project's task.
func (m *Manager) SetProject(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if projectID != m.projectID {
		m.taskID = ""
	}
	m.projectID = projectID
	m.reconcileLocked()
}

// SetTask scopes the manager to one task's comment thread.
func (m *Manager) SetTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskID = taskID
	m.reconcileLocked()
}

// CloseAll closes every open listener. The manager accepts no further work.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	m.ident = nil
	m.projectID = ""
	m.taskID = ""
	m.reconcileLocked()
	m.mu.Unlock()
}

// OpenCount reports the number of open listeners, for tests and health.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// reconcileLocked diffs the desired shape set against the open listeners:
// stale shapes close first, then missing shapes open. A listener whose shape
// is unchanged is left untouched.
func (m *Manager) reconcileLocked() {
	desired := m.desiredLocked()

	for shape, l := range m.listeners {
		if _, keep := desired[shape]; keep {
			continue
		}
		l.Close()
		delete(m.listeners, shape)
		if m.metrics != nil {
			m.metrics.ActiveSubscriptions.Dec()
		}
	}

	for shape, open := range desired {
		if _, ok := m.listeners[shape]; ok {
			continue
		}
		m.listeners[shape] = open()
		if m.metrics != nil {
			m.metrics.ActiveSubscriptions.Inc()
		}
	}
}

func (m *Manager) desiredLocked() map[string]func() listener {
	desired := make(map[string]func() listener)
	if m.closed || m.ident == nil {
		return desired
	}

	ident := *m.ident
	emit := m.emit

	desired["teams:member="+ident.Email] = func() listener {
		return openSubscription(m.st, "teams:member="+ident.Email, []string{store.CollectionTeams},
			func(ctx context.Context) (Event, error) {
				teams, err := m.st.ListTeamsByMember(ctx, ident.Email)
				if err != nil {
					return Event{}, err
				}
				return Event{Kind: EventMyTeams, Teams: teams}, nil
			}, emit)
	}

	desired["messages:recipient="+ident.Email] = func() listener {
		return openSubscription(m.st, "messages:recipient="+ident.Email, []string{store.CollectionMessages},
			func(ctx context.Context) (Event, error) {
				msgs, err := m.st.ListMessagesByRecipient(ctx, ident.Email)
				if err != nil {
					return Event{}, err
				}
				return Event{Kind: EventMessages, Messages: msgs}, nil
			}, emit)
	}

	switch policy.VisibleProjects(ident.Role) {
	case policy.ScopeOwnProjects:
		shape := "projects:creator=" + ident.UserID
		desired[shape] = func() listener {
			return openSubscription(m.st, shape, []string{store.CollectionProjects},
				func(ctx context.Context) (Event, error) {
					projects, err := m.st.ListProjectsByCreator(ctx, ident.UserID)
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventProjects, Projects: projects}, nil
				}, emit)
		}
	case policy.ScopeAllProjects:
		desired["projects:all"] = func() listener {
			return openSubscription(m.st, "projects:all", []string{store.CollectionProjects},
				func(ctx context.Context) (Event, error) {
					projects, err := m.st.ListProjects(ctx)
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventProjects, Projects: projects}, nil
				}, emit)
		}
	case policy.ScopeTeamProjects:
		shape := "projects:teams-of=" + ident.Email
		desired[shape] = func() listener {
			return openTeamProjects(m.st, shape, ident.Email, emit)
		}
	}

	if policy.SeesDirectory(ident.Role) {
		desired["users:all"] = func() listener {
			return openSubscription(m.st, "users:all", []string{store.CollectionUsers},
				func(ctx context.Context) (Event, error) {
					users, err := m.st.ListUsers(ctx)
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventUsers, Users: users}, nil
				}, emit)
		}
		desired["teams:all"] = func() listener {
			return openSubscription(m.st, "teams:all", []string{store.CollectionTeams},
				func(ctx context.Context) (Event, error) {
					teams, err := m.st.ListTeams(ctx)
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventTeams, Teams: teams}, nil
				}, emit)
		}
	}

	if m.projectID != "" {
		projectID := m.projectID
		docShape := "project:" + projectID
		desired[docShape] = func() listener {
			return openSubscription(m.st, docShape, []string{store.CollectionProjects},
				func(ctx context.Context) (Event, error) {
					p, err := m.st.GetProject(ctx, projectID)
					if errors.Is(err, store.ErrNotFound) {
						// Deleted under us: a nil project snapshot, not an error.
						return Event{Kind: EventProject}, nil
					}
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventProject, Project: &p}, nil
				}, emit)
		}
		tasksShape := "tasks:project=" + projectID
		desired[tasksShape] = func() listener {
			return openSubscription(m.st, tasksShape, []string{store.CollectionTasks},
				func(ctx context.Context) (Event, error) {
					tasks, err := m.st.ListTasksByProject(ctx, projectID)
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventTasks, Tasks: tasks}, nil
				}, emit)
		}
	}

	if m.taskID != "" {
		taskID := m.taskID
		shape := "comments:task=" + taskID
		desired[shape] = func() listener {
			return openSubscription(m.st, shape, []string{store.CollectionComments},
				func(ctx context.Context) (Event, error) {
					comments, err := m.st.ListCommentsByTask(ctx, taskID)
					if err != nil {
						return Event{}, err
					}
					return Event{Kind: EventComments, Comments: comments}, nil
				}, emit)
		}
	}

	return desired
}

func (m *Manager) emit(ev Event) {
	if m.metrics != nil {
		m.metrics.SnapshotEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
	m.sink(ev)
}
