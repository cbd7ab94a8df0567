package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"opsdash/internal/ics"
	appLog "opsdash/internal/log"
	"opsdash/internal/model"
)

// maxUploadBytes bounds an uploaded .ics file.
const maxUploadBytes = 10 << 20

// eventDTO is the JSON view of a model.Event. Formatting for display is
// left to the client.
type eventDTO struct {
	Title    string     `json:"title"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	Location string     `json:"location"`
}

type eventsResponse struct {
	Loaded      bool       `json:"loaded"`
	Origin      string     `json:"origin,omitempty"`
	LoadedAt    *time.Time `json:"loaded_at,omitempty"`
	HorizonDays int        `json:"horizon_days"`
	Events      []eventDTO `json:"events"`
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			Title:    ev.Title,
			Start:    ev.Start,
			End:      ev.End,
			Location: ev.Location,
		})
	}
	return out
}

// handleCalendarUpload accepts a calendar document either as the raw
// request body or as the multipart field "file", and makes it the active
// calendar.
//
// POST /api/calendar
//   - 200: upcoming events (possibly empty)
//   - 422: the document could not be read
//   - 500: time frame mismatch (configuration problem)
func (s *Server) handleCalendarUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	body, name, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "calendar file too large")
			return
		}
		appLog.Error("calendar upload read failed", err)
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	events, err := s.deps.Calendar.Load(body, "upload:"+name)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	origin, loadedAt := s.deps.Calendar.Source()
	writeJSON(w, http.StatusOK, eventsResponse{
		Loaded:      true,
		Origin:      origin,
		LoadedAt:    &loadedAt,
		HorizonDays: s.deps.Calendar.HorizonDays(),
		Events:      toDTOs(events),
	})
}

func readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(r.Body)
		return body, "body", err
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	return body, hdr.Filename, err
}

// handleEvents returns the upcoming events of the active calendar.
// "No calendar loaded" and "no events in window" are both 200 with an
// empty list, told apart by the "loaded" flag.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.deps.Calendar.Upcoming()
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	resp := eventsResponse{
		Loaded:      snap.Loaded,
		Origin:      snap.Origin,
		HorizonDays: s.deps.Calendar.HorizonDays(),
		Events:      toDTOs(snap.Events),
	}
	if snap.Loaded {
		loadedAt := snap.LoadedAt
		resp.LoadedAt = &loadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendarRefresh re-fetches the subscription immediately.
func (s *Server) handleCalendarRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeError(w, http.StatusConflict, "no calendar subscription configured")
		return
	}
	if err := s.deps.Refresher.RefreshNow(r.Context()); err != nil {
		if errors.Is(err, ics.ErrMalformedDocument) || errors.Is(err, ics.ErrIncomparableTimeFrame) {
			writeCalendarError(w, err)
			return
		}
		appLog.Error("calendar refresh failed", err)
		writeError(w, http.StatusBadGateway, "calendar subscription could not be fetched")
		return
	}
	s.handleEvents(w, r)
}

func writeCalendarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ics.ErrMalformedDocument):
		writeError(w, http.StatusUnprocessableEntity, "could not read calendar: "+err.Error())
	case errors.Is(err, ics.ErrIncomparableTimeFrame):
		appLog.Error("calendar time frame mismatch", err)
		writeError(w, http.StatusInternalServerError, "calendar time zone cannot be reconciled with the server time zone")
	default:
		appLog.Error("calendar filter failed", err)
		writeError(w, http.StatusInternalServerError, "calendar unavailable")
	}
}
