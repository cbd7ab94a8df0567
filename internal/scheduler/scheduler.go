package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"opsdash/internal/ics"
	appLog "opsdash/internal/log"
	"opsdash/internal/model"
	"opsdash/internal/telemetry"
)

// Fetcher is the part of ics.Fetcher the scheduler needs.
type Fetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Loader accepts a freshly fetched calendar document.
type Loader interface {
	Load(body []byte, origin string) ([]model.Event, error)
}

// Scheduler periodically refreshes the calendar subscription.
type Scheduler struct {
	spec    string
	loc     *time.Location
	source  ics.Source
	fetcher Fetcher
	loader  Loader
	timeout time.Duration

	// refreshMu serializes refreshes; cron may fire while a manual one runs.
	refreshMu sync.Mutex
}

// New builds a Scheduler. spec is a standard 5-field cron expression
// evaluated in loc.
func New(spec string, loc *time.Location, src ics.Source, f Fetcher, l Loader) (*Scheduler, error) {
	if src.URL == "" {
		return nil, errors.New("scheduler: calendar subscription URL is empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid refresh schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		spec:    spec,
		loc:     loc,
		source:  src,
		fetcher: f,
		loader:  l,
		timeout: 60 * time.Second,
	}, nil
}

// Start runs one refresh immediately, then follows the cron schedule until
// ctx is cancelled. It returns once the first refresh has completed.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() {
		if err := s.RefreshNow(ctx); err != nil {
			appLog.Error("scheduled calendar refresh failed", err, "id", s.source.ID)
		}
	}); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := s.RefreshNow(ctx); err != nil {
		appLog.Error("initial calendar refresh failed", err, "id", s.source.ID)
	}

	c.Start()
	appLog.Info("calendar refresh scheduled", "id", s.source.ID, "refresh", s.spec, "timezone", s.loc.String())

	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		appLog.Info("calendar refresh stopped", "id", s.source.ID)
	}()
	return nil
}

// RefreshNow fetches the subscription and loads it.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.fetcher.FetchOne(ctx, s.source)
	if err != nil {
		telemetry.RecordRefresh("failed")
		return err
	}

	events, err := s.loader.Load(res.Body, "subscription:"+s.source.ID)
	if err != nil {
		telemetry.RecordRefresh("failed")
		return err
	}

	if res.FromCache {
		telemetry.RecordRefresh("cached")
	} else {
		telemetry.RecordRefresh("fetched")
	}
	appLog.Debug("calendar refresh done", "id", s.source.ID, "from_cache", res.FromCache, "upcoming", len(events))
	return nil
}
