package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists every collection in PostgreSQL. Change notification
// stays in-process: each committed write publishes on the local notifier, the
// same seam the memory store uses, so subscriptions behave identically on
// both backends.
type PostgresStore struct {
	pool     *pgxpool.Pool
	notifier *notifier
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, notifier: newNotifier()}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			members TEXT[] NOT NULL DEFAULT '{}',
			manager_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_teams_members ON teams USING GIN (members);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			creator_email TEXT NOT NULL,
			team_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_creator ON projects (creator_id);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_team ON projects (team_id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			step INTEGER NOT NULL DEFAULT 0,
			assigned_to TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_created ON tasks (project_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			author TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task_created ON comments (task_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_email TEXT NOT NULL,
			recipient_email TEXT NOT NULL,
			text TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_created ON messages (recipient_email, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, role) VALUES ($1, $2, $3)`,
		u.ID, u.Email, string(u.Role),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	s.notifier.publish(CollectionUsers)
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, role FROM users WHERE id=$1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, role FROM users WHERE lower(email)=lower($1)`, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = Role(role)
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, email, role FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &role); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		u.Role = Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateTeam(ctx context.Context, t Team) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (id, name, members, manager_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.Members, t.ManagerID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	s.notifier.publish(CollectionTeams)
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, id string) (Team, error) {
	var t Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, members, manager_id, created_at FROM teams WHERE id=$1`, id,
	).Scan(&t.ID, &t.Name, &t.Members, &t.ManagerID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpdateTeam(ctx context.Context, id, name string, members []string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE teams SET name=$2, members=$3 WHERE id=$1`,
		id, name, members,
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.notifier.publish(CollectionTeams)
	return nil
}

func (s *PostgresStore) DeleteTeam(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM teams WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	s.notifier.publish(CollectionTeams)
	return nil
}

func (s *PostgresStore) ListTeams(ctx context.Context) ([]Team, error) {
	return s.queryTeams(ctx, `SELECT id, name, members, manager_id, created_at FROM teams ORDER BY name, id`)
}

func (s *PostgresStore) ListTeamsByMember(ctx context.Context, email string) ([]Team, error) {
	return s.queryTeams(ctx,
		`SELECT id, name, members, manager_id, created_at FROM teams WHERE $1 = ANY(members) ORDER BY name, id`,
		email,
	)
}

func (s *PostgresStore) queryTeams(ctx context.Context, sql string, args ...any) ([]Team, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Members, &t.ManagerID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, creator_id, creator_email, team_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.CreatorID, p.CreatorEmail, p.TeamID, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	s.notifier.publish(CollectionProjects)
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, creator_id, creator_email, team_id, created_at FROM projects WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.CreatorID, &p.CreatorEmail, &p.TeamID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SetProjectTeam(ctx context.Context, projectID, teamID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE projects SET team_id=$2 WHERE id=$1`, projectID, teamID)
	if err != nil {
		return fmt.Errorf("set project team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.notifier.publish(CollectionProjects)
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	// Tasks and comments go with the project via ON DELETE CASCADE.
	if _, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.notifier.publish(CollectionProjects, CollectionTasks, CollectionComments)
	return nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	return s.queryProjects(ctx,
		`SELECT id, name, creator_id, creator_email, team_id, created_at FROM projects ORDER BY created_at, id`)
}

func (s *PostgresStore) ListProjectsByCreator(ctx context.Context, creatorID string) ([]Project, error) {
	return s.queryProjects(ctx,
		`SELECT id, name, creator_id, creator_email, team_id, created_at
		 FROM projects WHERE creator_id=$1 ORDER BY created_at, id`,
		creatorID,
	)
}

func (s *PostgresStore) ListProjectsByTeams(ctx context.Context, teamIDs []string) ([]Project, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	return s.queryProjects(ctx,
		`SELECT id, name, creator_id, creator_email, team_id, created_at
		 FROM projects WHERE team_id = ANY($1) ORDER BY created_at, id`,
		teamIDs,
	)
}

func (s *PostgresStore) queryProjects(ctx context.Context, sql string, args ...any) ([]Project, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatorID, &p.CreatorEmail, &p.TeamID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveTask(ctx context.Context, t Task) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, project_id, text, status, priority, step, assigned_to, due_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			text=EXCLUDED.text,
			status=EXCLUDED.status,
			priority=EXCLUDED.priority,
			step=EXCLUDED.step,
			assigned_to=EXCLUDED.assigned_to,
			due_date=EXCLUDED.due_date`,
		t.ID, t.ProjectID, t.Text, string(t.Status), string(t.Priority), t.Step, t.AssignedTo, t.DueDate, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	s.notifier.publish(CollectionTasks)
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, projectID, taskID string) (Task, error) {
	var t Task
	var status, priority string
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, text, status, priority, step, assigned_to, due_date, created_at
		 FROM tasks WHERE id=$1 AND project_id=$2`,
		taskID, projectID,
	).Scan(&t.ID, &t.ProjectID, &t.Text, &status, &priority, &t.Step, &t.AssignedTo, &t.DueDate, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	return t, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, projectID, taskID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1 AND project_id=$2`, taskID, projectID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.notifier.publish(CollectionTasks, CollectionComments)
	return nil
}

func (s *PostgresStore) ListTasksByProject(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, text, status, priority, step, assigned_to, due_date, created_at
		 FROM tasks WHERE project_id=$1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var status, priority string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Text, &status, &priority, &t.Step, &t.AssignedTo, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.Status = TaskStatus(status)
		t.Priority = Priority(priority)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateTasks(ctx context.Context, projectID string, ts []Task) error {
	if len(ts) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range ts {
		if t.ProjectID != projectID {
			return fmt.Errorf("batch insert: task %q does not belong to project %s", t.ID, projectID)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO tasks (id, project_id, text, status, priority, step, assigned_to, due_date, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.ProjectID, t.Text, string(t.Status), string(t.Priority), t.Step, t.AssignedTo, t.DueDate, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("batch insert task: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.notifier.publish(CollectionTasks)
	return nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, c Comment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO comments (id, task_id, text, author, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TaskID, c.Text, c.Author, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	s.notifier.publish(CollectionComments)
	return nil
}

func (s *PostgresStore) ListCommentsByTask(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, task_id, text, author, created_at
		 FROM comments WHERE task_id=$1 ORDER BY created_at DESC, id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Text, &c.Author, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, sender_email, recipient_email, text, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SenderEmail, m.RecipientEmail, m.Text, m.Read, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx,
		`SELECT id, sender_email, recipient_email, text, read, created_at FROM messages WHERE id=$1`, id,
	).Scan(&m.ID, &m.SenderEmail, &m.RecipientEmail, &m.Text, &m.Read, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET read=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *PostgresStore) MarkMessagesRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range ids {
		tag, err := tx.Exec(ctx, `UPDATE messages SET read=TRUE WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("batch read update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("batch read: message %s: %w", id, ErrNotFound)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	s.notifier.publish(CollectionMessages)
	return nil
}

func (s *PostgresStore) ListMessagesByRecipient(ctx context.Context, email string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender_email, recipient_email, text, read, created_at
		 FROM messages WHERE lower(recipient_email)=lower($1) ORDER BY created_at DESC, id`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderEmail, &m.RecipientEmail, &m.Text, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Watch(collections ...string) (<-chan struct{}, func()) {
	return s.notifier.watch(collections...)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
