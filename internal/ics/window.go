package ics

import (
	"fmt"
	"math"
	"slices"
	"time"

	appLog "opsdash/internal/log"
	"opsdash/internal/model"
)

// DefaultHorizonDays is the forward-looking window used by the dashboard.
const DefaultHorizonDays = 14

// maxBoundedHorizonDays is the longest horizon expressible as a
// time.Duration. Longer horizons leave the window open-ended.
const maxBoundedHorizonDays = math.MaxInt64 / int64(24*time.Hour)

// FilterUpcomingEvents decodes body and returns the events whose start lies
// in [ref, ref+horizonDays*24h], both ends inclusive, sorted by start.
// Events sharing a start keep their document order.
//
//   - All-day and floating values are anchored to ref.Location().
//   - Events without DTSTART are dropped.
//   - Any error aborts the call; no partial list is returned.
//
// The function reads no clock and performs no I/O.
func FilterUpcomingEvents(body []byte, ref time.Time, horizonDays int) ([]model.Event, error) {
	if horizonDays < 0 {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidHorizon, horizonDays)
	}

	raws, err := DecodeEvents(body)
	if err != nil {
		return nil, err
	}

	loc := ref.Location()
	bounded := int64(horizonDays) <= maxBoundedHorizonDays
	var windowEnd time.Time
	if bounded {
		windowEnd = ref.Add(time.Duration(horizonDays) * 24 * time.Hour)
	}

	out := make([]model.Event, 0)
	for i, raw := range raws {
		if raw.Start == nil {
			appLog.Debug("ics event without DTSTART dropped", "index", i, "uid", raw.UID)
			continue
		}
		if raw.RRule != "" {
			appLog.Debug("ics recurrence not expanded", "uid", raw.UID, "rrule", raw.RRule)
		}

		ev, err := normalizeEvent(raw, loc)
		if err != nil {
			return nil, fmt.Errorf("vevent %d: %w", i, err)
		}
		if ev.Start.Before(ref) || (bounded && ev.Start.After(windowEnd)) {
			continue
		}
		out = append(out, ev)
	}

	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
	return out, nil
}

func normalizeEvent(raw RawEvent, loc *time.Location) (model.Event, error) {
	start, err := raw.Start.Resolve(loc)
	if err != nil {
		return model.Event{}, err
	}

	ev := model.Event{
		Title:    raw.Title,
		Start:    start,
		Location: raw.Location,
	}
	if raw.End != nil {
		end, err := raw.End.Resolve(loc)
		if err != nil {
			return model.Event{}, err
		}
		ev.End = &end
	}
	return ev, nil
}
