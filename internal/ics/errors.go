package ics

import "errors"

var (
	// ErrMalformedDocument means the bytes are not a readable calendar
	// document. Callers must not render partial results.
	ErrMalformedDocument = errors.New("malformed calendar document")

	// ErrIncomparableTimeFrame means a time value's zone cannot be
	// reconciled with the reference time's zone.
	ErrIncomparableTimeFrame = errors.New("incomparable time frame")

	// ErrInvalidHorizon is returned for a negative horizon.
	ErrInvalidHorizon = errors.New("invalid horizon")
)
