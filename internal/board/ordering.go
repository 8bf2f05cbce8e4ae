// Package board derives presentable task state: kanban columns, step/priority
// ordering and weighted progress.
package board

import (
	"sort"
	"strings"

	"github.com/ent0n29/boardsync/internal/store"
)

// unsteppedRank is the sort position of tasks with no step assigned: they go
// after every explicitly sequenced task.
const unsteppedRank = 999

// PriorityWeight ranks a priority for tie-breaking and progress weighting.
// Unrecognized or absent priorities weigh the same as Low.
func PriorityWeight(p store.Priority) int {
	switch strings.ToLower(string(p)) {
	case "high":
		return 3
	case "medium":
		return 2
	default:
		return 1
	}
}

func stepRank(t store.Task) int {
	if t.Step == 0 {
		return unsteppedRank
	}
	return t.Step
}

// SortTasks orders tasks by step ascending, breaking ties by priority weight
// descending. The sort is stable, so re-sorting an already ordered list is a
// no-op.
func SortTasks(tasks []store.Task) []store.Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		si, sj := stepRank(tasks[i]), stepRank(tasks[j])
		if si != sj {
			return si < sj
		}
		return PriorityWeight(tasks[i].Priority) > PriorityWeight(tasks[j].Priority)
	})
	return tasks
}

// Columns is the kanban view of one project's task collection.
type Columns struct {
	Todo       []store.Task `json:"todo"`
	InProgress []store.Task `json:"inprogress"`
	Done       []store.Task `json:"done"`
}

func BuildColumns(tasks []store.Task) Columns {
	var cols Columns
	for _, t := range tasks {
		switch t.Status {
		case store.StatusTodo:
			cols.Todo = append(cols.Todo, t)
		case store.StatusInProgress:
			cols.InProgress = append(cols.InProgress, t)
		case store.StatusDone:
			cols.Done = append(cols.Done, t)
		}
	}
	SortTasks(cols.Todo)
	SortTasks(cols.InProgress)
	SortTasks(cols.Done)
	return cols
}

// Progress is the weighted completion of a task collection. HasData is false
// when there are no tasks to weigh; Percent is meaningless in that case.
type Progress struct {
	HasData bool    `json:"has_data"`
	Percent float64 `json:"percent"`
}

func ComputeProgress(tasks []store.Task) Progress {
	total := 0
	completed := 0
	for _, t := range tasks {
		w := PriorityWeight(t.Priority)
		total += w
		if t.Status == store.StatusDone {
			completed += w
		}
	}
	if total == 0 {
		return Progress{}
	}
	return Progress{
		HasData: true,
		Percent: float64(completed) / float64(total) * 100,
	}
}

// CanTransition reports whether a task may move to the given status. Movement
// is user-directed drag over a free graph of the three states, so any valid
// target is legal, including moving backwards.
func CanTransition(_, to store.TaskStatus) bool {
	return to.Valid()
}

// NextStep returns the step value for a manually added task: one past the
// highest sibling step.
func NextStep(tasks []store.Task) int {
	max := 0
	for _, t := range tasks {
		if t.Step > max {
			max = t.Step
		}
	}
	return max + 1
}
