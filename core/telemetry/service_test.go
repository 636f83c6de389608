package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

type memRepo struct {
	events []Event
}

func (r *memRepo) InsertEvent(_ context.Context, e *Event) error {
	r.events = append(r.events, *e)
	return nil
}

type sinkSpy struct {
	err     error
	reports []Report
}

func (s *sinkSpy) Publish(_ context.Context, r Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

type dispatcherMock struct {
	mock.Mock
}

func (m *dispatcherMock) Dispatch(_ context.Context, name string, payload interface{}) error {
	return m.Called(name, payload).Error(0)
}

type loggerSpy struct {
	core.NopLogger
	errors []string
}

func (l *loggerSpy) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }

func TestService_Track(t *testing.T) {
	repo := new(memRepo)
	svc := NewService(repo, new(sinkSpy), new(dispatcherMock), core.NopLogger{})

	e, err := svc.Track(context.Background(), "user-1", TrackEvent{
		Name:       " attendance_saved ",
		Properties: null.JSONFrom([]byte(`{"count":12}`)),
		Path:       "/attendance",
	})
	require.NoError(t, err)
	assert.Equal(t, "attendance_saved", e.Name)
	assert.Equal(t, "user-1", e.UserID.String)
	assert.False(t, e.SessionID.Valid)
	assert.Len(t, repo.events, 1)
}

func TestService_ReportNonCritical(t *testing.T) {
	sink := new(sinkSpy)
	fns := new(dispatcherMock)
	logger := new(loggerSpy)
	svc := NewService(new(memRepo), sink, fns, logger, WithRelease("1.4.0"))

	err := svc.Report(context.Background(), Report{Kind: KindPerformance, Severity: SeverityLow, Message: "slow load", Metric: "lcp", Value: 3200})
	require.NoError(t, err)
	require.Len(t, sink.reports, 1)
	assert.Equal(t, "1.4.0", sink.reports[0].Release)
	assert.False(t, sink.reports[0].OccurredAt.IsZero())
	fns.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	assert.Empty(t, logger.errors)
}

func TestService_ReportCritical(t *testing.T) {
	sink := &sinkSpy{err: errors.New("broker unavailable")}
	fns := new(dispatcherMock)
	fns.On("Dispatch", core.FnCriticalErrorEmail, mock.AnythingOfType("telemetry.Report")).Return(nil)
	logger := new(loggerSpy)
	svc := NewService(new(memRepo), sink, fns, logger)

	err := svc.Report(context.Background(), Report{Kind: KindError, Severity: SeverityCritical, Message: "dashboard crashed"})
	assert.NoError(t, err, "critical reports still reach the maintainers by email")
	fns.AssertNumberOfCalls(t, "Dispatch", 1)
	assert.Equal(t, []string{"critical client error: dashboard crashed"}, logger.errors)
}

func TestService_ReportThrottled(t *testing.T) {
	sink := new(sinkSpy)
	fns := new(dispatcherMock)
	fns.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(new(memRepo), sink, fns, core.NopLogger{}, WithRateLimit(0.001, 2))
	ctx := context.Background()

	low := Report{Kind: KindError, Severity: SeverityMedium, Message: "boom"}
	assert.NoError(t, svc.Report(ctx, low))
	assert.NoError(t, svc.Report(ctx, low))
	assert.Equal(t, ErrThrottled, svc.Report(ctx, low))

	crit := Report{Kind: KindError, Severity: SeverityCritical, Message: "boom"}
	assert.NoError(t, svc.Report(ctx, crit))
	assert.Len(t, sink.reports, 3)
}

func TestService_ReportCriticalBurst(t *testing.T) {
	sink := new(sinkSpy)
	fns := new(dispatcherMock)
	fns.On("Dispatch", core.FnCriticalErrorEmail, mock.Anything).Return(nil)
	logger := new(loggerSpy)
	svc := NewService(new(memRepo), sink, fns, logger, WithRateLimit(0.001, 10), WithCriticalRateLimit(0.001, 3))
	ctx := context.Background()

	crit := Report{Kind: KindError, Severity: SeverityCritical, Message: "boom"}
	var throttled int
	for i := 0; i < 50; i++ {
		if err := svc.Report(ctx, crit); err == ErrThrottled {
			throttled++
		}
	}

	fns.AssertNumberOfCalls(t, "Dispatch", 3)
	assert.Len(t, logger.errors, 3)
	assert.Len(t, sink.reports, 13, "3 escalated, then 10 from the shared budget")
	assert.Equal(t, 37, throttled)
}
