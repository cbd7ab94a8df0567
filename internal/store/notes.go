package store

import (
	"sort"
	"strings"

	"opsdash/internal/model"
)

const untitledNote = "Untitled"

// AddNote stores a new note; an empty title becomes "Untitled".
func (s *Store) AddNote(title, body string) (model.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = untitledNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	n := model.Note{
		ID:        s.doc.NextNoteID,
		Title:     title,
		BodyMD:    body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.doc.NextNoteID++
	s.doc.Notes = append(s.doc.Notes, n)
	if err := s.saveLocked(); err != nil {
		return model.Note{}, err
	}
	return n, nil
}

// ListNotes returns notes, most recently updated first.
func (s *Store) ListNotes() []model.Note {
	s.mu.RLock()
	out := append([]model.Note(nil), s.doc.Notes...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) GetNote(id int64) (model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.doc.Notes {
		if n.ID == id {
			return n, nil
		}
	}
	return model.Note{}, ErrNotFound
}

// UpdateNote replaces title and body and bumps UpdatedAt.
func (s *Store) UpdateNote(id int64, title, body string) (model.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = untitledNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Notes {
		if s.doc.Notes[i].ID != id {
			continue
		}
		s.doc.Notes[i].Title = title
		s.doc.Notes[i].BodyMD = body
		s.doc.Notes[i].UpdatedAt = s.clock.Now().UTC()
		if err := s.saveLocked(); err != nil {
			return model.Note{}, err
		}
		return s.doc.Notes[i], nil
	}
	return model.Note{}, ErrNotFound
}

func (s *Store) DeleteNote(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.doc.Notes {
		if n.ID == id {
			s.doc.Notes = append(s.doc.Notes[:i], s.doc.Notes[i+1:]...)
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

// SetSetting upserts a key.
func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Settings[key] = value
	return s.saveLocked()
}

// GetSetting returns the stored value or def when the key is unset.
func (s *Store) GetSetting(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.doc.Settings[key]; ok {
		return v
	}
	return def
}
