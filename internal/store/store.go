package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("document not found")

// Collection names used for change notification.
const (
	CollectionUsers    = "users"
	CollectionTeams    = "teams"
	CollectionProjects = "projects"
	CollectionTasks    = "tasks"
	CollectionComments = "comments"
	CollectionMessages = "messages"
)

// Store is the backing document store: single-document writes, filtered reads,
// atomic multi-document batches, and change notification. Every write that
// commits publishes a change signal for its collection; live subscribers
// re-query and receive a full replacement snapshot.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	CreateTeam(ctx context.Context, t Team) error
	GetTeam(ctx context.Context, id string) (Team, error)
	// UpdateTeam overwrites name and members in place, preserving the team's
	// identity and every project that references it.
	UpdateTeam(ctx context.Context, id, name string, members []string) error
	DeleteTeam(ctx context.Context, id string) error
	ListTeams(ctx context.Context) ([]Team, error)
	ListTeamsByMember(ctx context.Context, email string) ([]Team, error)

	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id string) (Project, error)
	SetProjectTeam(ctx context.Context, projectID, teamID string) error
	// DeleteProject cascades to the project's tasks and their comments.
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]Project, error)
	ListProjectsByCreator(ctx context.Context, creatorID string) ([]Project, error)
	ListProjectsByTeams(ctx context.Context, teamIDs []string) ([]Project, error)

	SaveTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, projectID, taskID string) (Task, error)
	DeleteTask(ctx context.Context, projectID, taskID string) error
	ListTasksByProject(ctx context.Context, projectID string) ([]Task, error)
	// CreateTasks commits every task in one atomic batch: if any single
	// insert is rejected, none are persisted.
	CreateTasks(ctx context.Context, projectID string, ts []Task) error

	CreateComment(ctx context.Context, c Comment) error
	ListCommentsByTask(ctx context.Context, taskID string) ([]Comment, error)

	CreateMessage(ctx context.Context, m Message) error
	GetMessage(ctx context.Context, id string) (Message, error)
	MarkMessageRead(ctx context.Context, id string) error
	// MarkMessagesRead flips the read flag for the given ids in one atomic
	// batch. The id set is the caller's snapshot, not a re-query.
	MarkMessagesRead(ctx context.Context, ids []string) error
	DeleteMessage(ctx context.Context, id string) error
	ListMessagesByRecipient(ctx context.Context, email string) ([]Message, error)

	// Watch returns a coalescing signal channel that fires after any commit
	// touching one of the given collections, plus a cancel func. The channel
	// never blocks a writer; consumers re-query for the current snapshot.
	Watch(collections ...string) (<-chan struct{}, func())

	Close() error
}
