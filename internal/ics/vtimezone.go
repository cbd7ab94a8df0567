package ics

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "opsdash/internal/log"
)

// Zone is a VTIMEZONE defined inside the document. It is consulted only
// when a TZID names neither an IANA zone nor a known Windows zone.
type Zone struct {
	TZID        string
	observances []observance
}

// observance is one STANDARD or DAYLIGHT block. Wall-clock times are kept
// as UTC-labelled values so they compare field by field.
type observance struct {
	start      time.Time
	offsetFrom int
	offsetTo   int
	rule       *yearlyRule
}

// yearlyRule is the FREQ=YEARLY;BYMONTH=m;BYDAY=nDD shape every real-world
// VTIMEZONE uses.
type yearlyRule struct {
	month   time.Month
	week    int // 1..5 from the start of the month, -1..-5 from its end
	weekday time.Weekday
	until   time.Time
}

var (
	propTzoffsetFrom = ical.ComponentProperty(ical.PropertyTzoffsetfrom)
	propTzoffsetTo   = ical.ComponentProperty(ical.PropertyTzoffsetto)
)

// documentZones collects the usable VTIMEZONE blocks keyed by TZID. A block
// that cannot be read is skipped; events referring to it fail later.
func documentZones(cal *ical.Calendar) map[string]*Zone {
	zones := make(map[string]*Zone)
	for _, tz := range cal.Timezones() {
		p := tz.GetProperty(ical.ComponentPropertyTzid)
		if p == nil {
			continue
		}
		z, err := parseZone(p.Value, tz.SubComponents())
		if err != nil {
			appLog.Debug("ics vtimezone ignored", "tzid", p.Value, "err", err)
			continue
		}
		zones[z.TZID] = z
	}
	return zones
}

func parseZone(tzid string, subs []ical.Component) (*Zone, error) {
	z := &Zone{TZID: zoneName(tzid)}
	for _, sub := range subs {
		var base *ical.ComponentBase
		switch c := sub.(type) {
		case *ical.Standard:
			base = &c.ComponentBase
		case *ical.Daylight:
			base = &c.ComponentBase
		default:
			continue
		}
		o, err := parseObservance(base)
		if err != nil {
			return nil, err
		}
		z.observances = append(z.observances, o)
	}
	if len(z.observances) == 0 {
		return nil, errors.New("no STANDARD or DAYLIGHT block")
	}
	slices.SortFunc(z.observances, func(a, b observance) int {
		return a.start.Compare(b.start)
	})
	return z, nil
}

func parseObservance(c *ical.ComponentBase) (observance, error) {
	var o observance

	p := c.GetProperty(propTzoffsetTo)
	if p == nil {
		return o, errors.New("missing TZOFFSETTO")
	}
	to, err := parseUTCOffset(p.Value)
	if err != nil {
		return o, err
	}
	o.offsetTo, o.offsetFrom = to, to
	if p := c.GetProperty(propTzoffsetFrom); p != nil {
		if o.offsetFrom, err = parseUTCOffset(p.Value); err != nil {
			return o, err
		}
	}

	p = c.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return o, errors.New("missing DTSTART")
	}
	if o.start, err = time.Parse(layoutDateTime, strings.TrimSpace(p.Value)); err != nil {
		return o, fmt.Errorf("invalid DTSTART %q", p.Value)
	}

	if p := c.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rule, err := parseYearlyRule(p.Value, o.start)
		if err != nil {
			// Treated as a one-off onset at DTSTART.
			appLog.Debug("ics vtimezone rule not supported", "rrule", p.Value, "err", err)
		} else {
			o.rule = rule
		}
	}
	return o, nil
}

// parseUTCOffset reads "+hhmm", "-hhmm" or "+hhmmss" into seconds east of UTC.
func parseUTCOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if (len(s) != 5 && len(s) != 7) || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	digits := s[1:]
	hh, err1 := strconv.Atoi(digits[0:2])
	mm, err2 := strconv.Atoi(digits[2:4])
	ss := 0
	var err3 error
	if len(digits) == 6 {
		ss, err3 = strconv.Atoi(digits[4:6])
	}
	if err1 != nil || err2 != nil || err3 != nil || mm > 59 || ss > 59 {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	off := hh*3600 + mm*60 + ss
	if s[0] == '-' {
		off = -off
	}
	return off, nil
}

func parseYearlyRule(s string, start time.Time) (*yearlyRule, error) {
	r := &yearlyRule{month: start.Month()}
	var byDay string
	for _, part := range strings.Split(s, ";") {
		k, v, _ := strings.Cut(part, "=")
		switch strings.ToUpper(strings.TrimSpace(k)) {
		case "FREQ":
			if !strings.EqualFold(v, "YEARLY") {
				return nil, fmt.Errorf("FREQ=%s", v)
			}
		case "BYMONTH":
			m, err := strconv.Atoi(v)
			if err != nil || m < 1 || m > 12 {
				return nil, fmt.Errorf("BYMONTH=%s", v)
			}
			r.month = time.Month(m)
		case "BYDAY":
			byDay = strings.ToUpper(strings.TrimSpace(v))
		case "UNTIL":
			until, err := parseUntil(v)
			if err != nil {
				return nil, err
			}
			r.until = until
		case "INTERVAL":
			if v != "1" {
				return nil, fmt.Errorf("INTERVAL=%s", v)
			}
		}
	}

	if len(byDay) < 3 {
		return nil, fmt.Errorf("BYDAY=%q", byDay)
	}
	wd, ok := weekdays[byDay[len(byDay)-2:]]
	if !ok {
		return nil, fmt.Errorf("BYDAY=%q", byDay)
	}
	week, err := strconv.Atoi(byDay[:len(byDay)-2])
	if err != nil || week == 0 || week < -5 || week > 5 {
		return nil, fmt.Errorf("BYDAY=%q", byDay)
	}
	r.week, r.weekday = week, wd
	return r, nil
}

func parseUntil(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{layoutDateTimeUTC, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("UNTIL=%s", v)
}

var weekdays = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// onset returns the rule's transition in year, at DTSTART's time of day.
func (r *yearlyRule) onset(year int, start time.Time) time.Time {
	last := time.Date(year, r.month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	var day int
	if r.week > 0 {
		first := time.Date(year, r.month, 1, 0, 0, 0, 0, time.UTC).Weekday()
		day = 1 + (int(r.weekday)-int(first)+7)%7 + (r.week-1)*7
		for day > last {
			day -= 7
		}
	} else {
		lastWd := time.Date(year, r.month, last, 0, 0, 0, 0, time.UTC).Weekday()
		day = last - (int(lastWd)-int(r.weekday)+7)%7 + (r.week+1)*7
		for day < 1 {
			day += 7
		}
	}
	h, m, s := start.Clock()
	return time.Date(year, r.month, day, h, m, s, 0, time.UTC)
}

// latestOnset is the last transition into o at or before wall.
func (o *observance) latestOnset(wall time.Time) (time.Time, bool) {
	if o.start.After(wall) {
		return time.Time{}, false
	}
	if o.rule != nil {
		for y := wall.Year(); y >= wall.Year()-1; y-- {
			at := o.rule.onset(y, o.start)
			if at.Before(o.start) || (!o.rule.until.IsZero() && at.After(o.rule.until)) {
				continue
			}
			if !at.After(wall) {
				return at, true
			}
		}
	}
	return o.start, true
}

// offsetAt reports the UTC offset in force at the given wall-clock time.
func (z *Zone) offsetAt(wall time.Time) int {
	var best *observance
	var bestAt time.Time
	for i := range z.observances {
		o := &z.observances[i]
		at, ok := o.latestOnset(wall)
		if ok && (best == nil || at.After(bestAt)) {
			best, bestAt = o, at
		}
	}
	if best == nil {
		return z.observances[0].offsetFrom
	}
	return best.offsetTo
}

// At places the wall-clock fields in this zone.
func (z *Zone) At(year int, month time.Month, day, hour, minute, sec int) time.Time {
	wall := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	return time.Date(year, month, day, hour, minute, sec, 0, time.FixedZone(z.TZID, z.offsetAt(wall)))
}
