// Package tracker is the write side of the board: single-document mutations,
// atomic batches, and the AI task-generation pipeline. Every operation
// validates before touching the store and never retries; the authoritative
// state after a write is the next live snapshot, not the write's local echo.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/boardsync/internal/board"
	"github.com/ent0n29/boardsync/internal/genai"
	"github.com/ent0n29/boardsync/internal/identity"
	"github.com/ent0n29/boardsync/internal/observability"
	"github.com/ent0n29/boardsync/internal/policy"
	"github.com/ent0n29/boardsync/internal/store"
)

var (
	ErrPermission    = errors.New("operation not permitted for this role")
	ErrEmptyProject  = errors.New("project name is required")
	ErrEmptyTeam     = errors.New("team name and at least one member are required")
	ErrEmptyMessage  = errors.New("a recipient and a non-empty message are required")
	ErrEmptyTask     = errors.New("task text is required")
	ErrEmptyComment  = errors.New("comment text is required")
	ErrEmptyGoal     = errors.New("a project goal is required")
	ErrInvalidStatus = errors.New("invalid task status")
	ErrInvalidRole   = errors.New("invalid role")
	ErrEmailTaken    = errors.New("email is already registered")
	ErrNotRecipient  = errors.New("only the recipient may modify a message")
	ErrEmptyEmail    = errors.New("email is required")
)

type Service struct {
	st      store.Store
	gen     genai.Generator
	metrics *observability.Metrics
}

func New(st store.Store, gen genai.Generator, metrics *observability.Metrics) *Service {
	return &Service{st: st, gen: gen, metrics: metrics}
}

// RegisterUser creates the profile record at signup. The role is immutable
// afterwards; there is no promotion path.
func (s *Service) RegisterUser(ctx context.Context, email string, role store.Role) (store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return store.User{}, ErrEmptyEmail
	}
	if !role.Valid() {
		return store.User{}, ErrInvalidRole
	}
	if _, err := s.st.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("check email: %w", err)
	}

	u := store.User{ID: uuid.NewString(), Email: email, Role: role}
	err := s.st.CreateUser(ctx, u)
	s.metrics.ObserveWrite(store.CollectionUsers, err)
	if err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *Service) CreateProject(ctx context.Context, actor identity.Identity, name string) (store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Project{}, ErrEmptyProject
	}
	if !policy.CanCreateProject(actor.Role) {
		return store.Project{}, ErrPermission
	}

	p := store.Project{
		ID:           uuid.NewString(),
		Name:         name,
		CreatorID:    actor.UserID,
		CreatorEmail: actor.Email,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.st.CreateProject(ctx, p)
	s.metrics.ObserveWrite(store.CollectionProjects, err)
	if err != nil {
		return store.Project{}, err
	}
	return p, nil
}

func (s *Service) DeleteProject(ctx context.Context, actor identity.Identity, projectID string) error {
	p, err := s.st.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !policy.CanDeleteProject(actor.Role, actor.UserID, p) {
		return ErrPermission
	}
	err = s.st.DeleteProject(ctx, projectID)
	s.metrics.ObserveWrite(store.CollectionProjects, err)
	return err
}

// AssignTeam points a project at a team; project visibility for developers
// always joins through the team's current membership.
func (s *Service) AssignTeam(ctx context.Context, actor identity.Identity, projectID, teamID string) error {
	if !policy.CanManageTeams(actor.Role) {
		return ErrPermission
	}
	if teamID != "" {
		if _, err := s.st.GetTeam(ctx, teamID); err != nil {
			return err
		}
	}
	err := s.st.SetProjectTeam(ctx, projectID, teamID)
	s.metrics.ObserveWrite(store.CollectionProjects, err)
	return err
}

func (s *Service) CreateTeam(ctx context.Context, actor identity.Identity, name string, members []string) (store.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(members) == 0 {
		return store.Team{}, ErrEmptyTeam
	}
	if !policy.CanManageTeams(actor.Role) {
		return store.Team{}, ErrPermission
	}

	t := store.Team{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   append([]string(nil), members...),
		ManagerID: actor.UserID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.st.CreateTeam(ctx, t)
	s.metrics.ObserveWrite(store.CollectionTeams, err)
	if err != nil {
		return store.Team{}, err
	}
	return t, nil
}

// UpdateTeam overwrites name and members in place. The team keeps its id, so
// every project referencing it still resolves afterwards.
func (s *Service) UpdateTeam(ctx context.Context, actor identity.Identity, teamID, name string, members []string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(members) == 0 {
		return ErrEmptyTeam
	}
	t, err := s.st.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !policy.CanManageTeam(actor.Role, actor.UserID, t) {
		return ErrPermission
	}
	err = s.st.UpdateTeam(ctx, teamID, name, members)
	s.metrics.ObserveWrite(store.CollectionTeams, err)
	return err
}

func (s *Service) DeleteTeam(ctx context.Context, actor identity.Identity, teamID string) error {
	t, err := s.st.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !policy.CanManageTeam(actor.Role, actor.UserID, t) {
		return ErrPermission
	}
	err = s.st.DeleteTeam(ctx, teamID)
	s.metrics.ObserveWrite(store.CollectionTeams, err)
	return err
}

// AddTask appends a manually entered task: Medium priority, one step past the
// highest sibling step.
func (s *Service) AddTask(ctx context.Context, actor identity.Identity, projectID, text string) (store.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Task{}, ErrEmptyTask
	}
	siblings, err := s.st.ListTasksByProject(ctx, projectID)
	if err != nil {
		return store.Task{}, err
	}

	t := store.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Text:      text,
		Status:    store.StatusTodo,
		Priority:  store.PriorityMedium,
		Step:      board.NextStep(siblings),
		CreatedAt: time.Now().UTC(),
	}
	err = s.st.SaveTask(ctx, t)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	if err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// EditTaskText replaces a task's text. A blank edit is silently discarded,
// never an error and never a write.
func (s *Service) EditTaskText(ctx context.Context, actor identity.Identity, projectID, taskID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	t, err := s.st.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	t.Text = text
	err = s.st.SaveTask(ctx, t)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	return err
}

// MoveTask sets a task's status to the drop target's column. All transitions
// between the three states are legal in both directions.
func (s *Service) MoveTask(ctx context.Context, actor identity.Identity, projectID, taskID string, status store.TaskStatus) error {
	if !board.CanTransition("", status) {
		return ErrInvalidStatus
	}
	t, err := s.st.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	t.Status = status
	err = s.st.SaveTask(ctx, t)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	return err
}

func (s *Service) AssignTask(ctx context.Context, actor identity.Identity, projectID, taskID, assignee string) error {
	if !policy.CanAssignTasks(actor.Role) {
		return ErrPermission
	}
	t, err := s.st.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	t.AssignedTo = strings.TrimSpace(assignee)
	err = s.st.SaveTask(ctx, t)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	return err
}

func (s *Service) SetDueDate(ctx context.Context, actor identity.Identity, projectID, taskID string, due *time.Time) error {
	if !policy.CanSetDueDates(actor.Role) {
		return ErrPermission
	}
	t, err := s.st.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	t.DueDate = due
	err = s.st.SaveTask(ctx, t)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	return err
}

func (s *Service) DeleteTask(ctx context.Context, actor identity.Identity, projectID, taskID string) error {
	err := s.st.DeleteTask(ctx, projectID, taskID)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	return err
}

func (s *Service) AddComment(ctx context.Context, actor identity.Identity, taskID, text string) (store.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Comment{}, ErrEmptyComment
	}
	c := store.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Text:      text,
		Author:    actor.Email,
		CreatedAt: time.Now().UTC(),
	}
	err := s.st.CreateComment(ctx, c)
	s.metrics.ObserveWrite(store.CollectionComments, err)
	if err != nil {
		return store.Comment{}, err
	}
	return c, nil
}

func (s *Service) SendMessage(ctx context.Context, actor identity.Identity, recipient, text string) (store.Message, error) {
	text = strings.TrimSpace(text)
	recipient = strings.TrimSpace(recipient)
	if text == "" || recipient == "" {
		return store.Message{}, ErrEmptyMessage
	}
	m := store.Message{
		ID:             uuid.NewString(),
		SenderEmail:    actor.Email,
		RecipientEmail: recipient,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	err := s.st.CreateMessage(ctx, m)
	s.metrics.ObserveWrite(store.CollectionMessages, err)
	if err != nil {
		return store.Message{}, err
	}
	return m, nil
}

func (s *Service) MarkMessageRead(ctx context.Context, actor identity.Identity, messageID string) error {
	m, err := s.st.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(m.RecipientEmail, actor.Email) {
		return ErrNotRecipient
	}
	err = s.st.MarkMessageRead(ctx, messageID)
	s.metrics.ObserveWrite(store.CollectionMessages, err)
	return err
}

// MarkAllRead flips every unread message in the caller's held snapshot in one
// atomic batch. It deliberately acts on the snapshot, not a re-query, so a
// message arriving concurrently is left unread for the next snapshot to show.
func (s *Service) MarkAllRead(ctx context.Context, actor identity.Identity, snapshot []store.Message) (int, error) {
	var ids []string
	for _, m := range snapshot {
		if m.Read || !strings.EqualFold(m.RecipientEmail, actor.Email) {
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	err := s.st.MarkMessagesRead(ctx, ids)
	s.metrics.ObserveWrite(store.CollectionMessages, err)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.BatchSize.Observe(float64(len(ids)))
	}
	return len(ids), nil
}

func (s *Service) DeleteMessage(ctx context.Context, actor identity.Identity, messageID string) error {
	m, err := s.st.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(m.RecipientEmail, actor.Email) {
		return ErrNotRecipient
	}
	err = s.st.DeleteMessage(ctx, messageID)
	s.metrics.ObserveWrite(store.CollectionMessages, err)
	return err
}

// GenerateTasks runs the AI pipeline: validate the goal locally, issue one
// generation call, and commit every candidate as a new todo task in a single
// all-or-nothing batch. Repeated invocations with the same goal produce
// repeated task sets; no dedupe key is tracked.
func (s *Service) GenerateTasks(ctx context.Context, actor identity.Identity, projectID, goal string) ([]store.Task, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyGoal
	}
	if _, err := s.st.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	started := time.Now()
	generated, err := s.gen.GenerateTasks(ctx, goal)
	if err != nil {
		s.metrics.ObserveGeneration(generationOutcome(err), time.Since(started))
		return nil, err
	}
	if len(generated) == 0 {
		s.metrics.ObserveGeneration("no_candidates", time.Since(started))
		return nil, genai.ErrNoCandidates
	}
	s.metrics.ObserveGeneration("ok", time.Since(started))

	now := time.Now().UTC()
	tasks := make([]store.Task, 0, len(generated))
	for _, g := range generated {
		tasks = append(tasks, store.Task{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Text:      g.Name,
			Status:    store.StatusTodo,
			Priority:  store.Priority(g.Priority),
			Step:      g.Step,
			CreatedAt: now,
		})
	}

	err = s.st.CreateTasks(ctx, projectID, tasks)
	s.metrics.ObserveWrite(store.CollectionTasks, err)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.BatchSize.Observe(float64(len(tasks)))
	}
	return tasks, nil
}

// Board materializes the kanban view and weighted progress for one project.
func (s *Service) Board(ctx context.Context, projectID string) (board.Columns, board.Progress, error) {
	tasks, err := s.st.ListTasksByProject(ctx, projectID)
	if err != nil {
		return board.Columns{}, board.Progress{}, err
	}
	return board.BuildColumns(tasks), board.ComputeProgress(tasks), nil
}

func generationOutcome(err error) string {
	var statusErr *genai.StatusError
	switch {
	case errors.As(err, &statusErr):
		return "status_error"
	case errors.Is(err, genai.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, genai.ErrBadFormat):
		return "bad_format"
	default:
		return "error"
	}
}
