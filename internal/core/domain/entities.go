package domain

import (
	"time"
)

// Tree is a planted-tree marker on the survey map.
type Tree struct {
	ID        int64      `json:"id"`
	PlotID    *int64     `json:"plot_id,omitempty"`
	Position  Position   `json:"position"` // stored canonical (geographic)
	Status    TreeStatus `json:"status"`
	Species   string     `json:"species,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	PhotoURL  string     `json:"photo_url,omitempty"`
	PlantedBy string     `json:"planted_by,omitempty"`
	PlantedAt *time.Time `json:"planted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Plot is a named survey area: a polygon or multi-polygon boundary.
// Tree membership is resolved by spatial containment in the store.
type Plot struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Boundary holds one or more outer rings, each in canonical coordinates.
	Boundary  []Ring    `json:"boundary"`
	TreeCount int       `json:"tree_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a maintenance task attached to a tree.
type Task struct {
	ID          int64      `json:"id"`
	TreeID      int64      `json:"tree_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"` // open | done | overdue (raw, normalize before comparing)
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TimelineEvent is one entry in a tree's visit history.
type TimelineEvent struct {
	ID       int64     `json:"id"`
	TreeID   int64     `json:"tree_id"`
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"` // planted | inspected | watered | treated | status_change
	Note     string    `json:"note,omitempty"`
	PhotoURL string    `json:"photo_url,omitempty"`
	Author   string    `json:"author,omitempty"`
}

// TaskCounts are aggregates derived once per detail fetch.
type TaskCounts struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
}

// DetailRecord is the lazily fetched per-tree inspection detail. Partial is
// set when one of the underlying sources failed and the record was assembled
// from whatever succeeded.
type DetailRecord struct {
	TreeID    int64           `json:"tree_id"`
	Tasks     []Task          `json:"tasks"`
	Timeline  []TimelineEvent `json:"timeline"`
	Counts    TaskCounts      `json:"counts"`
	Partial   bool            `json:"partial,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// CountTasks derives task aggregates from a raw task list using normalized
// status comparison. Overdue counts open tasks whose due date has passed.
func CountTasks(tasks []Task, now time.Time) TaskCounts {
	c := TaskCounts{Total: len(tasks)}
	for _, t := range tasks {
		switch NormalizeStatus(t.Status) {
		case "done", "completed":
			c.Done++
		default:
			c.Pending++
			if t.DueAt != nil && t.DueAt.Before(now) {
				c.Overdue++
			}
		}
	}
	return c
}
