package telemetry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"opsdash/internal/ics"
)

func TestFilterOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, FilterOutcome(nil))
	assert.Equal(t, OutcomeMalformed, FilterOutcome(fmt.Errorf("wrap: %w", ics.ErrMalformedDocument)))
	assert.Equal(t, OutcomeIncomparable, FilterOutcome(ics.ErrIncomparableTimeFrame))
	assert.Equal(t, OutcomeOther, FilterOutcome(errors.New("other")))
}

func TestRecordCalendarFilter(t *testing.T) {
	before := testutil.ToFloat64(calendarFilters.WithLabelValues(OutcomeMalformed))
	RecordCalendarFilter(ics.ErrMalformedDocument, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(calendarFilters.WithLabelValues(OutcomeMalformed)))

	RecordCalendarFilter(nil, 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(calendarEvents))
}
