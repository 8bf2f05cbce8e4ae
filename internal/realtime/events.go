// Package realtime composes per-role, per-entity live queries over the store.
// Each subscription re-runs its query on every change signal and emits a full
// replacement snapshot; teardown guarantees no emission after close.
package realtime

import (
	"time"

	"github.com/ent0n29/boardsync/internal/store"
)

type EventKind string

const (
	EventProjects EventKind = "projects"
	EventMyTeams  EventKind = "my_teams"
	EventTeams    EventKind = "teams"
	EventUsers    EventKind = "users"
	EventMessages EventKind = "messages"
	EventProject  EventKind = "project"
	EventTasks    EventKind = "tasks"
	EventComments EventKind = "comments"
)

// Event is one full-snapshot delivery. Only the field matching Kind is set;
// each delivery fully replaces the consumer's previous collection of that
// kind. Project is nil when the watched document no longer exists.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Projects []store.Project `json:"projects,omitempty"`
	Teams    []store.Team    `json:"teams,omitempty"`
	Users    []store.User    `json:"users,omitempty"`
	Messages []store.Message `json:"messages,omitempty"`
	Project  *store.Project  `json:"project,omitempty"`
	Tasks    []store.Task    `json:"tasks,omitempty"`
	Comments []store.Comment `json:"comments,omitempty"`
	At       time.Time       `json:"at"`
}
