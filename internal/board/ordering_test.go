package board

import (
	"math"
	"testing"

	"github.com/ent0n29/boardsync/internal/store"
)

func TestPriorityWeight(t *testing.T) {
	cases := []struct {
		priority store.Priority
		want     int
	}{
		{store.PriorityHigh, 3},
		{store.PriorityMedium, 2},
		{store.PriorityLow, 1},
		{"HIGH", 3},
		{"Medium", 2},
		{"urgent", 1},
		{"", 1},
	}
	for _, c := range cases {
		if got := PriorityWeight(c.priority); got != c.want {
			t.Fatalf("PriorityWeight(%q) = %d, want %d", c.priority, got, c.want)
		}
	}
}

func TestSortTasksStepThenWeight(t *testing.T) {
	tasks := []store.Task{
		{ID: "b", Priority: store.PriorityLow, Step: 1},
		{ID: "c", Priority: store.PriorityMedium, Step: 2},
		{ID: "a", Priority: store.PriorityHigh, Step: 1},
	}
	SortTasks(tasks)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("tasks[%d].ID = %q, want %q (order %v)", i, tasks[i].ID, id, want)
		}
	}
}

func TestSortTasksUnsteppedGoLast(t *testing.T) {
	tasks := []store.Task{
		{ID: "loose", Priority: store.PriorityHigh},
		{ID: "first", Priority: store.PriorityLow, Step: 1},
	}
	SortTasks(tasks)
	if tasks[0].ID != "first" || tasks[1].ID != "loose" {
		t.Fatalf("unstepped task should sort last, got [%s %s]", tasks[0].ID, tasks[1].ID)
	}
}

func TestSortTasksIdempotent(t *testing.T) {
	tasks := []store.Task{
		{ID: "a", Priority: store.PriorityHigh, Step: 1},
		{ID: "b", Priority: store.PriorityLow, Step: 1},
		{ID: "c", Priority: store.PriorityMedium, Step: 2},
	}
	SortTasks(tasks)
	first := []string{tasks[0].ID, tasks[1].ID, tasks[2].ID}
	SortTasks(tasks)
	for i := range first {
		if tasks[i].ID != first[i] {
			t.Fatalf("re-sort changed order at %d: %q vs %q", i, tasks[i].ID, first[i])
		}
	}
}

func TestComputeProgressWeighted(t *testing.T) {
	tasks := []store.Task{
		{Priority: store.PriorityHigh, Status: store.StatusDone},
		{Priority: store.PriorityLow, Status: store.StatusTodo},
	}
	p := ComputeProgress(tasks)
	if !p.HasData {
		t.Fatalf("HasData = false, want true")
	}
	if math.Abs(p.Percent-75) > 1e-9 {
		t.Fatalf("Percent = %v, want 75", p.Percent)
	}
}

func TestComputeProgressEmpty(t *testing.T) {
	p := ComputeProgress(nil)
	if p.HasData {
		t.Fatalf("HasData = true for empty collection, want false")
	}
	if p.Percent != 0 {
		t.Fatalf("Percent = %v, want 0", p.Percent)
	}
}

func TestBuildColumnsSplitsAndSorts(t *testing.T) {
	tasks := []store.Task{
		{ID: "t2", Status: store.StatusTodo, Priority: store.PriorityLow, Step: 1},
		{ID: "d1", Status: store.StatusDone, Priority: store.PriorityMedium, Step: 3},
		{ID: "t1", Status: store.StatusTodo, Priority: store.PriorityHigh, Step: 1},
		{ID: "p1", Status: store.StatusInProgress, Priority: store.PriorityLow, Step: 2},
	}
	cols := BuildColumns(tasks)
	if len(cols.Todo) != 2 || len(cols.InProgress) != 1 || len(cols.Done) != 1 {
		t.Fatalf("column sizes = %d/%d/%d, want 2/1/1", len(cols.Todo), len(cols.InProgress), len(cols.Done))
	}
	if cols.Todo[0].ID != "t1" || cols.Todo[1].ID != "t2" {
		t.Fatalf("todo order = [%s %s], want [t1 t2]", cols.Todo[0].ID, cols.Todo[1].ID)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(store.StatusDone, store.StatusTodo) {
		t.Fatalf("moving back to todo should be allowed")
	}
	if CanTransition(store.StatusTodo, "archived") {
		t.Fatalf("unknown status should be rejected")
	}
}

func TestNextStep(t *testing.T) {
	tasks := []store.Task{{Step: 2}, {Step: 5}, {Step: 0}}
	if got := NextStep(tasks); got != 6 {
		t.Fatalf("NextStep() = %d, want 6", got)
	}
	if got := NextStep(nil); got != 1 {
		t.Fatalf("NextStep(empty) = %d, want 1", got)
	}
}
