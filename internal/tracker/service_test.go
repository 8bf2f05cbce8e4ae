package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ent0n29/boardsync/internal/genai"
	"github.com/ent0n29/boardsync/internal/identity"
	"github.com/ent0n29/boardsync/internal/store"
)

func newService() (*Service, *store.MemoryStore, *genai.Mock) {
	st := store.NewMemoryStore()
	gen := &genai.Mock{}
	return New(st, gen, nil), st, gen
}

func manager() identity.Identity {
	return identity.Identity{UserID: "m1", Email: "mgr@x.io", Role: store.RoleManager}
}

func developer() identity.Identity {
	return identity.Identity{UserID: "d1", Email: "dev@x.io", Role: store.RoleDeveloper}
}

func admin() identity.Identity {
	return identity.Identity{UserID: "a1", Email: "adm@x.io", Role: store.RoleAdmin}
}

func TestRegisterUserValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	if _, err := svc.RegisterUser(ctx, "  ", store.RoleDeveloper); !errors.Is(err, ErrEmptyEmail) {
		t.Fatalf("blank email error = %v, want ErrEmptyEmail", err)
	}
	if _, err := svc.RegisterUser(ctx, "a@x.io", "owner"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role error = %v, want ErrInvalidRole", err)
	}

	u, err := svc.RegisterUser(ctx, "a@x.io", store.RoleDeveloper)
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	if u.ID == "" || u.Role != store.RoleDeveloper {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := svc.RegisterUser(ctx, "a@x.io", store.RoleManager); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email error = %v, want ErrEmailTaken", err)
	}
}

func TestCreateProjectPermissions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	if _, err := svc.CreateProject(ctx, developer(), "Launch"); !errors.Is(err, ErrPermission) {
		t.Fatalf("developer create error = %v, want ErrPermission", err)
	}
	if _, err := svc.CreateProject(ctx, manager(), "  "); !errors.Is(err, ErrEmptyProject) {
		t.Fatalf("blank name error = %v, want ErrEmptyProject", err)
	}
	p, err := svc.CreateProject(ctx, manager(), "Launch")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if p.CreatorID != "m1" || p.CreatorEmail != "mgr@x.io" {
		t.Fatalf("creator fields not stamped: %+v", p)
	}
}

func TestDeleteProjectCreatorOrAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")

	other := identity.Identity{UserID: "m2", Email: "other@x.io", Role: store.RoleManager}
	if err := svc.DeleteProject(ctx, other, p.ID); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-creator delete error = %v, want ErrPermission", err)
	}
	if err := svc.DeleteProject(ctx, admin(), p.ID); err != nil {
		t.Fatalf("admin delete error = %v", err)
	}
	if err := svc.DeleteProject(ctx, admin(), p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("double delete error = %v, want ErrNotFound", err)
	}
}

func TestTeamLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	if _, err := svc.CreateTeam(ctx, manager(), "Core", nil); !errors.Is(err, ErrEmptyTeam) {
		t.Fatalf("memberless team error = %v, want ErrEmptyTeam", err)
	}
	if _, err := svc.CreateTeam(ctx, developer(), "Core", []string{"dev@x.io"}); !errors.Is(err, ErrPermission) {
		t.Fatalf("developer create team error = %v, want ErrPermission", err)
	}

	team, err := svc.CreateTeam(ctx, manager(), "Core", []string{"dev@x.io"})
	if err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}
	if team.ManagerID != "m1" {
		t.Fatalf("team manager = %q, want m1", team.ManagerID)
	}

	other := identity.Identity{UserID: "m2", Email: "other@x.io", Role: store.RoleManager}
	if err := svc.UpdateTeam(ctx, other, team.ID, "Core+", []string{"dev@x.io"}); !errors.Is(err, ErrPermission) {
		t.Fatalf("foreign manager update error = %v, want ErrPermission", err)
	}
	if err := svc.UpdateTeam(ctx, manager(), team.ID, "Core+", []string{"dev@x.io", "qa@x.io"}); err != nil {
		t.Fatalf("UpdateTeam() error = %v", err)
	}
	if err := svc.DeleteTeam(ctx, admin(), team.ID); err != nil {
		t.Fatalf("admin DeleteTeam() error = %v", err)
	}
}

func TestAssignTeamValidatesTarget(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")
	if err := svc.AssignTeam(ctx, manager(), p.ID, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown team error = %v, want ErrNotFound", err)
	}

	team, _ := svc.CreateTeam(ctx, manager(), "Core", []string{"dev@x.io"})
	if err := svc.AssignTeam(ctx, manager(), p.ID, team.ID); err != nil {
		t.Fatalf("AssignTeam() error = %v", err)
	}
	// Empty team id clears the assignment.
	if err := svc.AssignTeam(ctx, manager(), p.ID, ""); err != nil {
		t.Fatalf("AssignTeam(clear) error = %v", err)
	}
}

func TestAddTaskDefaultsAndStep(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")

	if _, err := svc.AddTask(ctx, developer(), p.ID, "   "); !errors.Is(err, ErrEmptyTask) {
		t.Fatalf("blank task error = %v, want ErrEmptyTask", err)
	}

	first, err := svc.AddTask(ctx, developer(), p.ID, "write docs")
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if first.Priority != store.PriorityMedium || first.Status != store.StatusTodo || first.Step != 1 {
		t.Fatalf("unexpected defaults: %+v", first)
	}

	second, _ := svc.AddTask(ctx, developer(), p.ID, "ship docs")
	if second.Step != 2 {
		t.Fatalf("second step = %d, want 2", second.Step)
	}
}

func TestEditTaskTextBlankIsDiscarded(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")
	task, _ := svc.AddTask(ctx, developer(), p.ID, "write docs")

	if err := svc.EditTaskText(ctx, developer(), p.ID, task.ID, "  "); err != nil {
		t.Fatalf("blank edit error = %v, want nil", err)
	}
	got, _ := st.GetTask(ctx, p.ID, task.ID)
	if got.Text != "write docs" {
		t.Fatalf("blank edit changed text to %q", got.Text)
	}

	if err := svc.EditTaskText(ctx, developer(), p.ID, task.ID, "revise docs"); err != nil {
		t.Fatalf("EditTaskText() error = %v", err)
	}
	got, _ = st.GetTask(ctx, p.ID, task.ID)
	if got.Text != "revise docs" {
		t.Fatalf("text = %q, want %q", got.Text, "revise docs")
	}
}

func TestMoveTaskFreeTransitions(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")
	task, _ := svc.AddTask(ctx, developer(), p.ID, "write docs")

	if err := svc.MoveTask(ctx, developer(), p.ID, task.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status error = %v, want ErrInvalidStatus", err)
	}
	if err := svc.MoveTask(ctx, developer(), p.ID, task.ID, store.StatusDone); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	// Backwards movement is legal.
	if err := svc.MoveTask(ctx, developer(), p.ID, task.ID, store.StatusTodo); err != nil {
		t.Fatalf("MoveTask(back) error = %v", err)
	}
	got, _ := st.GetTask(ctx, p.ID, task.ID)
	if got.Status != store.StatusTodo {
		t.Fatalf("status = %q, want todo", got.Status)
	}
}

func TestAssignAndDueDateNeedManager(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")
	task, _ := svc.AddTask(ctx, developer(), p.ID, "write docs")

	if err := svc.AssignTask(ctx, developer(), p.ID, task.ID, "dev@x.io"); !errors.Is(err, ErrPermission) {
		t.Fatalf("developer assign error = %v, want ErrPermission", err)
	}
	if err := svc.AssignTask(ctx, manager(), p.ID, task.ID, "dev@x.io"); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}

	due := time.Now().Add(48 * time.Hour).UTC()
	if err := svc.SetDueDate(ctx, developer(), p.ID, task.ID, &due); !errors.Is(err, ErrPermission) {
		t.Fatalf("developer due-date error = %v, want ErrPermission", err)
	}
	if err := svc.SetDueDate(ctx, manager(), p.ID, task.ID, &due); err != nil {
		t.Fatalf("SetDueDate() error = %v", err)
	}
	got, _ := st.GetTask(ctx, p.ID, task.ID)
	if got.AssignedTo != "dev@x.io" || got.DueDate == nil {
		t.Fatalf("unexpected task: %+v", got)
	}

	if err := svc.SetDueDate(ctx, manager(), p.ID, task.ID, nil); err != nil {
		t.Fatalf("SetDueDate(clear) error = %v", err)
	}
	got, _ = st.GetTask(ctx, p.ID, task.ID)
	if got.DueDate != nil {
		t.Fatalf("due date not cleared: %+v", got.DueDate)
	}
}

func TestMessagesRecipientOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	if _, err := svc.SendMessage(ctx, manager(), "", "hi"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("no recipient error = %v, want ErrEmptyMessage", err)
	}
	if _, err := svc.SendMessage(ctx, manager(), "dev@x.io", "  "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank text error = %v, want ErrEmptyMessage", err)
	}

	m, err := svc.SendMessage(ctx, manager(), "dev@x.io", "standup at 10")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if m.SenderEmail != "mgr@x.io" || m.Read {
		t.Fatalf("unexpected message: %+v", m)
	}

	if err := svc.MarkMessageRead(ctx, manager(), m.ID); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("sender mark-read error = %v, want ErrNotRecipient", err)
	}
	if err := svc.MarkMessageRead(ctx, developer(), m.ID); err != nil {
		t.Fatalf("recipient mark-read error = %v", err)
	}
	if err := svc.DeleteMessage(ctx, manager(), m.ID); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("sender delete error = %v, want ErrNotRecipient", err)
	}
	if err := svc.DeleteMessage(ctx, developer(), m.ID); err != nil {
		t.Fatalf("recipient delete error = %v", err)
	}
}

func TestMarkAllReadActsOnSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()

	m1, _ := svc.SendMessage(ctx, manager(), "dev@x.io", "one")
	m2, _ := svc.SendMessage(ctx, manager(), "dev@x.io", "two")
	_ = svc.MarkMessageRead(ctx, developer(), m2.ID)

	snapshot, _ := st.ListMessagesByRecipient(ctx, "dev@x.io")

	// A message arriving after the snapshot is taken must stay unread.
	late, _ := svc.SendMessage(ctx, manager(), "dev@x.io", "three")

	n, err := svc.MarkAllRead(ctx, developer(), snapshot)
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("marked = %d, want 1 (only the unread snapshot entry)", n)
	}
	got1, _ := st.GetMessage(ctx, m1.ID)
	if !got1.Read {
		t.Fatalf("snapshot message should be read")
	}
	gotLate, _ := st.GetMessage(ctx, late.ID)
	if gotLate.Read {
		t.Fatalf("post-snapshot message must stay unread")
	}
}

func TestMarkAllReadEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	n, err := svc.MarkAllRead(ctx, developer(), nil)
	if err != nil || n != 0 {
		t.Fatalf("MarkAllRead(empty) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestGenerateTasksPipeline(t *testing.T) {
	ctx := context.Background()
	svc, st, gen := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")

	if _, err := svc.GenerateTasks(ctx, manager(), p.ID, "   "); !errors.Is(err, ErrEmptyGoal) {
		t.Fatalf("blank goal error = %v, want ErrEmptyGoal", err)
	}
	if gen.Calls != 0 {
		t.Fatalf("blank goal must not reach the generator, calls = %d", gen.Calls)
	}
	if _, err := svc.GenerateTasks(ctx, manager(), "missing", "ship v1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown project error = %v, want ErrNotFound", err)
	}

	gen.Tasks = []genai.GeneratedTask{
		{Name: "design schema", Priority: "High", Step: 1},
		{Name: "build API", Priority: "Medium", Step: 2},
	}
	tasks, err := svc.GenerateTasks(ctx, manager(), p.ID, "ship v1")
	if err != nil {
		t.Fatalf("GenerateTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("generated %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != store.StatusTodo || task.ProjectID != p.ID {
			t.Fatalf("unexpected generated task: %+v", task)
		}
	}
	stored, _ := st.ListTasksByProject(ctx, p.ID)
	if len(stored) != 2 {
		t.Fatalf("stored %d tasks, want 2", len(stored))
	}
}

func TestGenerateTasksSurfacesGeneratorFailures(t *testing.T) {
	ctx := context.Background()
	svc, st, gen := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")

	gen.Err = &genai.StatusError{Code: 429, Body: "quota"}
	var statusErr *genai.StatusError
	if _, err := svc.GenerateTasks(ctx, manager(), p.ID, "ship v1"); !errors.As(err, &statusErr) {
		t.Fatalf("status failure error = %v, want StatusError", err)
	}

	gen.Err = genai.ErrNoCandidates
	if _, err := svc.GenerateTasks(ctx, manager(), p.ID, "ship v1"); !errors.Is(err, genai.ErrNoCandidates) {
		t.Fatalf("no-candidates error = %v", err)
	}

	gen.Err = nil
	gen.Tasks = []genai.GeneratedTask{}
	if _, err := svc.GenerateTasks(ctx, manager(), p.ID, "ship v1"); !errors.Is(err, genai.ErrNoCandidates) {
		t.Fatalf("empty result error = %v, want ErrNoCandidates", err)
	}

	stored, _ := st.ListTasksByProject(ctx, p.ID)
	if len(stored) != 0 {
		t.Fatalf("failed generations must persist nothing, got %d tasks", len(stored))
	}
}

func TestBoardView(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	p, _ := svc.CreateProject(ctx, manager(), "Launch")
	task, _ := svc.AddTask(ctx, developer(), p.ID, "write docs")
	_ = svc.MoveTask(ctx, developer(), p.ID, task.ID, store.StatusDone)
	_, _ = svc.AddTask(ctx, developer(), p.ID, "ship docs")

	cols, progress, err := svc.Board(ctx, p.ID)
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if len(cols.Done) != 1 || len(cols.Todo) != 1 {
		t.Fatalf("columns = %d todo / %d done, want 1/1", len(cols.Todo), len(cols.Done))
	}
	if !progress.HasData || progress.Percent != 50 {
		t.Fatalf("progress = %+v, want 50%% with data", progress)
	}
}
