package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	appLog "opsdash/internal/log"
	"opsdash/internal/model"
	"opsdash/internal/store"
	"opsdash/internal/weather"
)

const (
	maxJSONBytes    = 1 << 20
	settingHomeCity = "home_city"
	dueDateLayout   = "2006-01-02"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidTask):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

// GET /api/tasks?include_done=1
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	includeDone := r.URL.Query().Get("include_done")
	tasks := s.deps.Store.ListTasks(includeDone == "1" || includeDone == "true")
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title      string `json:"title"`
	DueDate    string `json:"due_date"`
	Tag        string `json:"tag"`
	Priority   string `json:"priority"`
	EstMinutes int    `json:"est_min"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := store.NewTask{
		Title:      req.Title,
		Tag:        req.Tag,
		Priority:   req.Priority,
		EstMinutes: req.EstMinutes,
	}
	if req.DueDate != "" {
		loc, _ := s.cfg.Location()
		due, err := time.ParseInLocation(dueDateLayout, req.DueDate, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}
		in.Due = &due
	}

	task, err := s.deps.Store.AddTask(in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleTaskDone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.deps.Store.SetTaskStatus(id, model.TaskDone); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.deps.Store.DeleteTask(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type noteRequest struct {
	Title  string `json:"title"`
	BodyMD string `json:"body_md"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Store.ListNotes())
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := s.deps.Store.AddNote(req.Title, req.BodyMD)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	note, err := s.deps.Store.GetNote(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := s.deps.Store.UpdateNote(id, req.Title, req.BodyMD)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.deps.Store.DeleteNote(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// settingDefault supplies config-backed defaults for known keys.
func (s *Server) settingDefault(key string) string {
	if key == settingHomeCity {
		return s.cfg.HomeCity
	}
	return ""
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	writeJSON(w, http.StatusOK, settingResponse{
		Key:   key,
		Value: s.deps.Store.GetSetting(key, s.settingDefault(key)),
	})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req struct {
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Store.SetSetting(key, strings.TrimSpace(req.Value)); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: strings.TrimSpace(req.Value)})
}

type weatherResponse struct {
	Place    weather.Place    `json:"place"`
	Forecast weather.Forecast `json:"forecast"`
	Source   string           `json:"source"`
}

// GET /api/weather?city=Maryville
// Without ?city the stored home_city setting is used.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		city = s.deps.Store.GetSetting(settingHomeCity, s.cfg.HomeCity)
	}

	place, err := s.deps.Weather.Geocode(ctx, city)
	if err != nil {
		if errors.Is(err, weather.ErrCityNotFound) {
			writeError(w, http.StatusNotFound, "city not found")
			return
		}
		appLog.Error("weather geocode failed", err, "city", city)
		writeError(w, http.StatusBadGateway, "weather service unavailable")
		return
	}

	forecast, err := s.deps.Weather.Forecast(ctx, place.Latitude, place.Longitude)
	if err != nil {
		appLog.Error("weather forecast failed", err, "city", city)
		writeError(w, http.StatusBadGateway, "weather service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, weatherResponse{Place: place, Forecast: forecast, Source: "Open-Meteo"})
}
