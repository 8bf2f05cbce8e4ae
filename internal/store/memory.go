package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps every collection in process memory. It is the default
// backend when DATABASE_URL is not configured and backs most tests. Batches
// are applied inside a single critical section after validating every
// document, so they are all-or-nothing like the postgres transactions.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	teams    map[string]Team
	projects map[string]Project
	tasks    map[string]Task
	comments map[string]Comment
	messages map[string]Message

	notifier *notifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]User),
		teams:    make(map[string]Team),
		projects: make(map[string]Project),
		tasks:    make(map[string]Task),
		comments: make(map[string]Comment),
		messages: make(map[string]Message),
		notifier: newNotifier(),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	if _, exists := s.users[u.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("user %s already exists", u.ID)
	}
	s.users[u.ID] = u
	s.mu.Unlock()
	s.notifier.publish(CollectionUsers)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) CreateTeam(_ context.Context, t Team) error {
	s.mu.Lock()
	s.teams[t.ID] = t.Clone()
	s.mu.Unlock()
	s.notifier.publish(CollectionTeams)
	return nil
}

func (s *MemoryStore) GetTeam(_ context.Context, id string) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return Team{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) UpdateTeam(_ context.Context, id, name string, members []string) error {
	s.mu.Lock()
	t, ok := s.teams[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	t.Name = name
	t.Members = append([]string(nil), members...)
	s.teams[id] = t
	s.mu.Unlock()
	s.notifier.publish(CollectionTeams)
	return nil
}

func (s *MemoryStore) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.teams, id)
	s.mu.Unlock()
	s.notifier.publish(CollectionTeams)
	return nil
}

func (s *MemoryStore) ListTeams(_ context.Context) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t.Clone())
	}
	sortTeams(out)
	return out, nil
}

func (s *MemoryStore) ListTeamsByMember(_ context.Context, email string) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Team
	for _, t := range s.teams {
		for _, m := range t.Members {
			if strings.EqualFold(m, email) {
				out = append(out, t.Clone())
				break
			}
		}
	}
	sortTeams(out)
	return out, nil
}

func (s *MemoryStore) CreateProject(_ context.Context, p Project) error {
	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()
	s.notifier.publish(CollectionProjects)
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) SetProjectTeam(_ context.Context, projectID, teamID string) error {
	s.mu.Lock()
	p, ok := s.projects[projectID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	p.TeamID = teamID
	s.projects[projectID] = p
	s.mu.Unlock()
	s.notifier.publish(CollectionProjects)
	return nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.projects, id)
	for taskID, t := range s.tasks {
		if t.ProjectID != id {
			continue
		}
		delete(s.tasks, taskID)
		for commentID, c := range s.comments {
			if c.TaskID == taskID {
				delete(s.comments, commentID)
			}
		}
	}
	s.mu.Unlock()
	s.notifier.publish(CollectionProjects, CollectionTasks, CollectionComments)
	return nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) ListProjectsByCreator(_ context.Context, creatorID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, p := range s.projects {
		if p.CreatorID == creatorID {
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) ListProjectsByTeams(_ context.Context, teamIDs []string) ([]Project, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	idSet := make(map[string]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		idSet[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, p := range s.projects {
		if _, ok := idSet[p.TeamID]; ok {
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) SaveTask(_ context.Context, t Task) error {
	s.mu.Lock()
	s.tasks[t.ID] = t.Clone()
	s.mu.Unlock()
	s.notifier.publish(CollectionTasks)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, projectID, taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok || t.ProjectID != projectID {
		return Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, projectID, taskID string) error {
	s.mu.Lock()
	if t, ok := s.tasks[taskID]; !ok || t.ProjectID != projectID {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.tasks, taskID)
	for commentID, c := range s.comments {
		if c.TaskID == taskID {
			delete(s.comments, commentID)
		}
	}
	s.mu.Unlock()
	s.notifier.publish(CollectionTasks, CollectionComments)
	return nil
}

func (s *MemoryStore) ListTasksByProject(_ context.Context, projectID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateTasks(_ context.Context, projectID string, ts []Task) error {
	s.mu.Lock()
	if _, ok := s.projects[projectID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("batch insert: project %s: %w", projectID, ErrNotFound)
	}
	for _, t := range ts {
		if t.ID == "" || t.ProjectID != projectID {
			s.mu.Unlock()
			return fmt.Errorf("batch insert: task %q does not belong to project %s", t.ID, projectID)
		}
		if _, exists := s.tasks[t.ID]; exists {
			s.mu.Unlock()
			return fmt.Errorf("batch insert: task %s already exists", t.ID)
		}
	}
	for _, t := range ts {
		s.tasks[t.ID] = t.Clone()
	}
	s.mu.Unlock()
	if len(ts) > 0 {
		s.notifier.publish(CollectionTasks)
	}
	return nil
}

func (s *MemoryStore) CreateComment(_ context.Context, c Comment) error {
	s.mu.Lock()
	s.comments[c.ID] = c
	s.mu.Unlock()
	s.notifier.publish(CollectionComments)
	return nil
}

func (s *MemoryStore) ListCommentsByTask(_ context.Context, taskID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Comment
	for _, c := range s.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	// Newest first; comments are append-only and never reordered afterwards.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, m Message) error {
	s.mu.Lock()
	s.messages[m.ID] = m
	s.mu.Unlock()
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) MarkMessageRead(_ context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	m.Read = true
	s.messages[id] = m
	s.mu.Unlock()
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *MemoryStore) MarkMessagesRead(_ context.Context, ids []string) error {
	s.mu.Lock()
	for _, id := range ids {
		if _, ok := s.messages[id]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("batch read: message %s: %w", id, ErrNotFound)
		}
	}
	for _, id := range ids {
		m := s.messages[id]
		m.Read = true
		s.messages[id] = m
	}
	s.mu.Unlock()
	if len(ids) > 0 {
		s.notifier.publish(CollectionMessages)
	}
	return nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.messages, id)
	s.mu.Unlock()
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *MemoryStore) ListMessagesByRecipient(_ context.Context, email string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, m := range s.messages {
		if strings.EqualFold(m.RecipientEmail, email) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Watch(collections ...string) (<-chan struct{}, func()) {
	return s.notifier.watch(collections...)
}

func (s *MemoryStore) Close() error { return nil }

func sortTeams(ts []Team) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Name != ts[j].Name {
			return ts[i].Name < ts[j].Name
		}
		return ts[i].ID < ts[j].ID
	})
}

func sortProjects(ps []Project) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
