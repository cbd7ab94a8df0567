// Package calendar keeps the dashboard's active calendar document and
// re-applies the upcoming-events window to it on demand.
package calendar

import (
	"sync"
	"time"

	"opsdash/internal/clock"
	"opsdash/internal/ics"
	appLog "opsdash/internal/log"
	"opsdash/internal/model"
	"opsdash/internal/telemetry"
)

// Snapshot is the current view of the active document.
type Snapshot struct {
	Loaded   bool
	Origin   string
	LoadedAt time.Time
	Events   []model.Event
}

// Service holds at most one calendar document. Documents are acquired by
// collaborators (upload handler, scheduler) and handed in as bytes.
type Service struct {
	clock       clock.Clock
	loc         *time.Location
	horizonDays int

	mu       sync.RWMutex
	doc      []byte
	origin   string
	loadedAt time.Time
}

// NewService builds a Service. loc is the reference frame for windows; nil
// means time.Local.
func NewService(c clock.Clock, loc *time.Location, horizonDays int) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		clock:       c,
		loc:         loc,
		horizonDays: horizonDays,
	}
}

// HorizonDays reports the configured window length.
func (s *Service) HorizonDays() int {
	return s.horizonDays
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Load validates body by filtering it once and, on success, makes it the
// active document. A rejected document leaves the previous one in place.
func (s *Service) Load(body []byte, origin string) ([]model.Event, error) {
	ref := s.now()
	events, err := s.filter(body, ref)
	if err != nil {
		appLog.Error("calendar document rejected", err, "origin", origin, "bytes", len(body))
		return nil, err
	}

	doc := make([]byte, len(body))
	copy(doc, body)

	s.mu.Lock()
	s.doc = doc
	s.origin = origin
	s.loadedAt = ref
	s.mu.Unlock()

	appLog.Info("calendar document loaded", "origin", origin, "bytes", len(body), "upcoming", len(events))
	return events, nil
}

// Source reports where the active document came from and when it was
// loaded, as read from the service clock.
func (s *Service) Source() (origin string, loadedAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin, s.loadedAt
}

// Upcoming filters the active document against the current instant.
func (s *Service) Upcoming() (Snapshot, error) {
	s.mu.RLock()
	doc, origin, loadedAt := s.doc, s.origin, s.loadedAt
	s.mu.RUnlock()

	if doc == nil {
		return Snapshot{Events: []model.Event{}}, nil
	}

	events, err := s.filter(doc, s.now())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Loaded:   true,
		Origin:   origin,
		LoadedAt: loadedAt,
		Events:   events,
	}, nil
}

func (s *Service) filter(body []byte, ref time.Time) ([]model.Event, error) {
	events, err := ics.FilterUpcomingEvents(body, ref, s.horizonDays)
	telemetry.RecordCalendarFilter(err, len(events))
	return events, err
}
