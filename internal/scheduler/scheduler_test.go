package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdash/internal/ics"
	"opsdash/internal/model"
)

type stubFetcher struct {
	res   ics.FetchResult
	err   error
	calls int
}

func (f *stubFetcher) FetchOne(_ context.Context, src ics.Source) (ics.FetchResult, error) {
	f.calls++
	res := f.res
	res.Source = src
	return res, f.err
}

type recordingLoader struct {
	bodies  [][]byte
	origins []string
	err     error
}

func (l *recordingLoader) Load(body []byte, origin string) ([]model.Event, error) {
	l.bodies = append(l.bodies, body)
	l.origins = append(l.origins, origin)
	return nil, l.err
}

var src = ics.Source{ID: "family", URL: "https://example.com/family.ics"}

func TestNew_Validation(t *testing.T) {
	_, err := New("*/15 * * * *", time.UTC, ics.Source{ID: "x"}, &stubFetcher{}, &recordingLoader{})
	require.Error(t, err)

	_, err = New("every fifteen minutes", time.UTC, src, &stubFetcher{}, &recordingLoader{})
	require.Error(t, err)

	s, err := New("*/15 * * * *", nil, src, &stubFetcher{}, &recordingLoader{})
	require.NoError(t, err)
	assert.Equal(t, time.Local, s.loc)
}

func TestRefreshNow_LoadsFetchedBody(t *testing.T) {
	f := &stubFetcher{res: ics.FetchResult{Body: []byte("BEGIN:VCALENDAR")}}
	l := &recordingLoader{}
	s, err := New("*/15 * * * *", time.UTC, src, f, l)
	require.NoError(t, err)

	require.NoError(t, s.RefreshNow(context.Background()))
	require.Len(t, l.bodies, 1)
	assert.Equal(t, []byte("BEGIN:VCALENDAR"), l.bodies[0])
	assert.Equal(t, "subscription:family", l.origins[0])
}

func TestRefreshNow_PropagatesErrors(t *testing.T) {
	fetchErr := errors.New("offline")
	s, err := New("*/15 * * * *", time.UTC, src, &stubFetcher{err: fetchErr}, &recordingLoader{})
	require.NoError(t, err)
	require.ErrorIs(t, s.RefreshNow(context.Background()), fetchErr)

	l := &recordingLoader{err: ics.ErrMalformedDocument}
	s, err = New("*/15 * * * *", time.UTC, src, &stubFetcher{}, l)
	require.NoError(t, err)
	require.ErrorIs(t, s.RefreshNow(context.Background()), ics.ErrMalformedDocument)
}

func TestRefreshNow_CancelledContext(t *testing.T) {
	f := &stubFetcher{}
	s, err := New("*/15 * * * *", time.UTC, src, f, &recordingLoader{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.RefreshNow(ctx), context.Canceled)
	assert.Equal(t, 0, f.calls)
}

func TestStart_RefreshesImmediately(t *testing.T) {
	f := &stubFetcher{res: ics.FetchResult{Body: []byte("x")}}
	l := &recordingLoader{}
	s, err := New("0 0 1 1 *", time.UTC, src, f, l)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, 1, f.calls)
	assert.Len(t, l.bodies, 1)
}
