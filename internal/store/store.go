// Package store persists tasks, notes and settings in a single JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"opsdash/internal/clock"
	"opsdash/internal/config"
	appLog "opsdash/internal/log"
	"opsdash/internal/model"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidTask = errors.New("invalid task")
)

// document is the on-disk layout of dashboard.json.
type document struct {
	NextTaskID int64             `json:"next_task_id"`
	NextNoteID int64             `json:"next_note_id"`
	Tasks      []model.Task      `json:"tasks"`
	Notes      []model.Note      `json:"notes"`
	Settings   map[string]string `json:"settings"`
}

// Store is safe for concurrent use. Every mutation is written through to
// disk before it returns.
type Store struct {
	path  string
	clock clock.Clock

	mu  sync.RWMutex
	doc document
}

// Open loads path, or starts empty when it does not exist yet.
func Open(path string, c clock.Clock) (*Store, error) {
	if c == nil {
		c = clock.NewSystem()
	}
	s := &Store{
		path:  path,
		clock: c,
		doc:   document{NextTaskID: 1, NextNoteID: 1, Settings: map[string]string{}},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("store file missing; starting empty", "path", path)
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	if s.doc.Settings == nil {
		s.doc.Settings = map[string]string{}
	}
	if s.doc.NextTaskID < 1 {
		s.doc.NextTaskID = 1
	}
	if s.doc.NextNoteID < 1 {
		s.doc.NextNoteID = 1
	}
	return s, nil
}

// saveLocked writes the document; caller must hold mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}

// NewTask is the input for AddTask.
type NewTask struct {
	Title      string
	Due        *time.Time
	Tag        string
	Priority   string
	EstMinutes int
}

// AddTask validates and stores an open task.
func (s *Store) AddTask(in NewTask) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title required", ErrInvalidTask)
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	if priorityRank(priority) < 0 {
		return model.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, in.Priority)
	}
	if in.EstMinutes < 0 {
		return model.Task{}, fmt.Errorf("%w: negative estimate", ErrInvalidTask)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := model.Task{
		ID:         s.doc.NextTaskID,
		Title:      title,
		Due:        in.Due,
		Tag:        strings.TrimSpace(in.Tag),
		Priority:   priority,
		EstMinutes: in.EstMinutes,
		Status:     model.TaskOpen,
		CreatedAt:  s.clock.Now().UTC(),
	}
	s.doc.NextTaskID++
	s.doc.Tasks = append(s.doc.Tasks, t)
	if err := s.saveLocked(); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// ListTasks returns tasks ordered by due date (undated last), then priority
// (High first), then id.
func (s *Store) ListTasks(includeDone bool) []model.Task {
	s.mu.RLock()
	out := make([]model.Task, 0, len(s.doc.Tasks))
	for _, t := range s.doc.Tasks {
		if !includeDone && t.Status != model.TaskOpen {
			continue
		}
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Due == nil && b.Due != nil:
			return false
		case a.Due != nil && b.Due == nil:
			return true
		case a.Due != nil && b.Due != nil && !a.Due.Equal(*b.Due):
			return a.Due.Before(*b.Due)
		}
		if ra, rb := priorityRank(a.Priority), priorityRank(b.Priority); ra != rb {
			return ra > rb
		}
		return a.ID < b.ID
	})
	return out
}

// SetTaskStatus marks a task open or done.
func (s *Store) SetTaskStatus(id int64, status string) error {
	if status != model.TaskOpen && status != model.TaskDone {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Tasks {
		if s.doc.Tasks[i].ID == id {
			s.doc.Tasks[i].Status = status
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.doc.Tasks {
		if t.ID == id {
			s.doc.Tasks = append(s.doc.Tasks[:i], s.doc.Tasks[i+1:]...)
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

func priorityRank(p string) int {
	switch p {
	case model.PriorityLow:
		return 0
	case model.PriorityNormal:
		return 1
	case model.PriorityHigh:
		return 2
	default:
		return -1
	}
}
