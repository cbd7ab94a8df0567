package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"opsdash/internal/calendar"
	"opsdash/internal/config"
	appLog "opsdash/internal/log"
	"opsdash/internal/model"
	"opsdash/internal/store"
	"opsdash/internal/telemetry"
	"opsdash/internal/weather"
)

// CalendarService is the calendar core as seen by the HTTP layer.
type CalendarService interface {
	Load(body []byte, origin string) ([]model.Event, error)
	Upcoming() (calendar.Snapshot, error)
	Source() (origin string, loadedAt time.Time)
	HorizonDays() int
}

// Refresher re-fetches the calendar subscription on demand.
type Refresher interface {
	RefreshNow(ctx context.Context) error
}

// WeatherClient looks up forecasts.
type WeatherClient interface {
	Geocode(ctx context.Context, city string) (weather.Place, error)
	Forecast(ctx context.Context, lat, lon float64) (weather.Forecast, error)
}

// Deps are the collaborators the server routes requests to. Refresher may
// be nil when no subscription is configured.
type Deps struct {
	Calendar  CalendarService
	Store     *store.Store
	Weather   WeatherClient
	Refresher Refresher
}

// Server provides the dashboard's JSON API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *mux.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/calendar", s.handleCalendarUpload).Methods(http.MethodPost)
	api.HandleFunc("/calendar/refresh", s.handleCalendarRefresh).Methods(http.MethodPost)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}/done", s.handleTaskDone).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.handleDeleteTask).Methods(http.MethodDelete)

	api.HandleFunc("/notes", s.handleListNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes", s.handleCreateNote).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id:[0-9]+}", s.handleGetNote).Methods(http.MethodGet)
	api.HandleFunc("/notes/{id:[0-9]+}", s.handleUpdateNote).Methods(http.MethodPut)
	api.HandleFunc("/notes/{id:[0-9]+}", s.handleDeleteNote).Methods(http.MethodDelete)

	api.HandleFunc("/settings/{key}", s.handleGetSetting).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", s.handlePutSetting).Methods(http.MethodPut)

	api.HandleFunc("/weather", s.handleWeather).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
