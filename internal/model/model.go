package model

import "time"

// Event is a calendar entry normalized for display. Values are built fresh
// on every filter call and are never mutated afterwards.
type Event struct {
	Title string

	// Start always carries time-of-day precision; all-day entries are
	// normalized to midnight in the caller's reference zone.
	Start time.Time
	// End is nil when the source entry has no DTEND.
	End *time.Time

	// Location is "" when not provided.
	Location string
}

// Priority levels accepted for tasks.
const (
	PriorityLow    = "Low"
	PriorityNormal = "Normal"
	PriorityHigh   = "High"
)

// Task status values.
const (
	TaskOpen = "open"
	TaskDone = "done"
)

// Task is a single to-do item.
type Task struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	Due      *time.Time `json:"due_date,omitempty"`
	Tag      string     `json:"tag,omitempty"`
	Priority string     `json:"priority"`
	// EstMinutes is the optional time estimate (0 = none).
	EstMinutes int       `json:"est_min,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Note is a markdown note.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	BodyMD    string    `json:"body_md"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
