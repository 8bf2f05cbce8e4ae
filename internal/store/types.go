package store

import "time"

// Role gates visibility and write permissions across the tracker.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDeveloper, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "inprogress"
	StatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// User is the profile record joined with the auth principal. Role is set at
// signup and immutable afterwards; a user present in auth but missing here
// resolves to an empty Role.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	ManagerID string    `json:"manager_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Project visibility is always resolved through the assigned team's live
// membership, never through a denormalized member copy.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatorID    string    `json:"creator_id"`
	CreatorEmail string    `json:"creator_email"`
	TeamID       string    `json:"team_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Task is owned by its parent project. Step establishes the logical sequence
// among siblings; zero means "no step assigned" and sorts last.
type Task struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Text       string     `json:"text"`
	Status     TaskStatus `json:"status"`
	Priority   Priority   `json:"priority,omitempty"`
	Step       int        `json:"step,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Comment is an append-only child of a task, listed newest-first.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	SenderEmail    string    `json:"sender_email"`
	RecipientEmail string    `json:"recipient_email"`
	Text           string    `json:"text"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}

func (tm Team) Clone() Team {
	out := tm
	if tm.Members != nil {
		out.Members = append([]string(nil), tm.Members...)
	}
	return out
}
