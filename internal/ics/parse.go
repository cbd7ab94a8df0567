package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "opsdash/internal/log"
)

// Kind tells a calendar date apart from a date-time.
type Kind int

const (
	KindDate Kind = iota + 1
	KindDateTime
)

// Frame is the reference frame a DATE-TIME was written in (RFC 5545 §3.3.5).
type Frame int

const (
	// FrameFloating has neither a trailing Z nor a TZID.
	FrameFloating Frame = iota
	FrameUTC
	FrameZoned
)

// TimeValue is a DTSTART/DTEND value exactly as the document states it.
// It is resolved to a time.Time by Resolve and never travels further.
type TimeValue struct {
	Kind  Kind
	Frame Frame
	TZID  string
	// Zone is the document's VTIMEZONE for TZID, if it defines one.
	Zone *Zone

	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// Resolve turns the value into an instant. Dates and floating date-times
// are anchored to ref, the zone of the caller's reference time, so they
// never fail. Zoned values resolve through the IANA database, the Windows
// zone names, and finally the document's own VTIMEZONE; only a TZID none
// of those know yields ErrIncomparableTimeFrame.
func (v TimeValue) Resolve(ref *time.Location) (time.Time, error) {
	if ref == nil {
		ref = time.Local
	}
	switch {
	case v.Kind == KindDate:
		return time.Date(v.Year, v.Month, v.Day, 0, 0, 0, 0, ref), nil
	case v.Frame == FrameUTC:
		return time.Date(v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, 0, time.UTC), nil
	case v.Frame == FrameZoned:
		loc, err := loadZone(v.TZID)
		if err == nil {
			return time.Date(v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, 0, loc), nil
		}
		if v.Zone != nil {
			return v.Zone.At(v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second), nil
		}
		return time.Time{}, fmt.Errorf("%w: TZID %q: %v", ErrIncomparableTimeFrame, v.TZID, err)
	default:
		return time.Date(v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, 0, ref), nil
	}
}

// RawEvent is one VEVENT with its optional fields decoded once.
type RawEvent struct {
	UID      string
	Title    string
	Location string

	// Start is nil when the VEVENT has no DTSTART.
	Start *TimeValue
	End   *TimeValue

	// RRule is kept for logging only; recurrences are not expanded.
	RRule string
}

// DecodeEvents parses a calendar document and returns its VEVENTs in
// document order. Other components (VTIMEZONE, VTODO, ...) are ignored.
func DecodeEvents(body []byte) ([]RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	zones := documentZones(cal)
	vevents := cal.Events()
	events := make([]RawEvent, 0, len(vevents))
	for i, ve := range vevents {
		ev, err := decodeVEvent(ve, zones)
		if err != nil {
			return nil, fmt.Errorf("%w: vevent %d: %w", ErrMalformedDocument, i, err)
		}
		events = append(events, ev)
	}

	appLog.Debug("ics decode completed", "event_count", len(events), "component_count", len(cal.Components))
	return events, nil
}

func decodeVEvent(ve *ical.VEvent, zones map[string]*Zone) (RawEvent, error) {
	var out RawEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		v, err := parseTimeValue(p, zones)
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.Start = &v
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		v, err := parseTimeValue(p, zones)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = &v
	}

	return out, nil
}

const (
	layoutDate        = "20060102"
	layoutDateTime    = "20060102T150405"
	layoutDateTimeUTC = "20060102T150405Z"
)

// parseTimeValue reads a DATE or DATE-TIME property, honouring VALUE=DATE
// and TZID. A bare eight-digit value without VALUE is also read as a date.
func parseTimeValue(p *ical.IANAProperty, zones map[string]*Zone) (TimeValue, error) {
	raw := strings.TrimSpace(p.Value)
	if raw == "" {
		return TimeValue{}, fmt.Errorf("empty value")
	}

	isDate := strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(raw, "T")
	if isDate {
		t, err := time.Parse(layoutDate, raw)
		if err != nil {
			return TimeValue{}, fmt.Errorf("invalid DATE %q", raw)
		}
		return TimeValue{
			Kind:  KindDate,
			Year:  t.Year(),
			Month: t.Month(),
			Day:   t.Day(),
		}, nil
	}

	v := TimeValue{Kind: KindDateTime}
	layout := layoutDateTime
	switch {
	case strings.HasSuffix(raw, "Z"):
		// TZID must not accompany a UTC value; the Z wins if it does.
		layout = layoutDateTimeUTC
		v.Frame = FrameUTC
	case param(p, "TZID") != "":
		v.Frame = FrameZoned
		v.TZID = param(p, "TZID")
		v.Zone = zones[zoneName(v.TZID)]
	default:
		v.Frame = FrameFloating
	}

	t, err := time.Parse(layout, raw)
	if err != nil {
		return TimeValue{}, fmt.Errorf("invalid DATE-TIME %q", raw)
	}
	v.Year, v.Month, v.Day = t.Date()
	v.Hour, v.Minute, v.Second = t.Clock()
	return v, nil
}

// param returns the first value of a property parameter, matched
// case-insensitively.
func param(p *ical.IANAProperty, name string) string {
	for k, vs := range p.ICalParameters {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}
