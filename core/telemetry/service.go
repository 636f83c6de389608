// Package telemetry records analytics events and forwards client error and
// performance reports to the telemetry sink.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/time/rate"

	"github.com/hoopdesk/hoopdesk/core"
)

// ErrThrottled is returned when reports arrive faster than the sink accepts them.
var ErrThrottled = errors.New("too many telemetry reports")

type (
	Repository interface {
		InsertEvent(ctx context.Context, e *Event) error
	}

	// Sink receives reports; services/telemetry has a kafka and a function backed one.
	Sink interface {
		Publish(ctx context.Context, r Report) error
	}

	Service struct {
		repo      Repository
		sink      Sink
		functions core.FunctionDispatcher
		limiter   *rate.Limiter
		critical  *rate.Limiter
		logger    core.Logger
		release   string
	}

	Option func(*Service)
)

// WithRateLimit caps non critical reports to perSecond with bursts of burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(svc *Service) { svc.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithCriticalRateLimit caps critical reports escalated by email to perMinute,
// with bursts of burst. Critical reports past the cap are handled like any other.
func WithCriticalRateLimit(perMinute float64, burst int) Option {
	return func(svc *Service) { svc.critical = rate.NewLimiter(rate.Limit(perMinute/60), burst) }
}

// WithRelease stamps reports lacking one with the server build.
func WithRelease(build string) Option {
	return func(svc *Service) { svc.release = build }
}

func NewService(repo Repository, sink Sink, functions core.FunctionDispatcher, logger core.Logger, opts ...Option) *Service {
	svc := &Service{
		repo:      repo,
		sink:      sink,
		functions: functions,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		critical:  rate.NewLimiter(rate.Every(time.Minute), 5),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *Service) Track(ctx context.Context, userID string, te TrackEvent) (*Event, error) {
	e := &Event{
		ID:         uuid.NewString(),
		Name:       core.CleanString(te.Name),
		Properties: te.Properties,
		CreatedAt:  core.NowFunc().UTC(),
	}
	if userID != "" {
		e.UserID = null.StringFrom(userID)
	}
	if te.Path != "" {
		e.Path = null.StringFrom(te.Path)
	}
	if te.SessionID != "" {
		e.SessionID = null.StringFrom(te.SessionID)
	}
	if err := svc.repo.InsertEvent(ctx, e); err != nil {
		return nil, errors.Wrap(err, "inserting analytics event")
	}
	return e, nil
}

// Report forwards r to the sink. Critical reports within their own budget skip the
// shared limit and are logged at error level and mailed to the maintainers as well.
// Past that budget they are throttled and forwarded like non critical ones.
func (svc *Service) Report(ctx context.Context, r Report) error {
	if r.OccurredAt.IsZero() {
		r.OccurredAt = core.NowFunc().UTC()
	}
	if r.Release == "" {
		r.Release = svc.release
	}

	critical := r.Severity == SeverityCritical && svc.critical.Allow()
	if !critical && !svc.limiter.Allow() {
		return ErrThrottled
	}

	var sinkErr error
	if err := svc.sink.Publish(ctx, r); err != nil {
		sinkErr = errors.Wrap(err, "publishing telemetry report")
	}
	if !critical {
		return sinkErr
	}

	svc.logger.Error(fmt.Sprintf("critical client error: %s", r.Message), map[string]interface{}{
		"kind":       r.Kind,
		"page_path":  r.Path,
		"user_id":    r.UserID,
		"user_agent": r.UserAgent,
		"occurred":   r.OccurredAt.Format(time.RFC3339),
	})
	if err := svc.functions.Dispatch(ctx, core.FnCriticalErrorEmail, r); err != nil {
		svc.logger.Warn(fmt.Sprintf("critical error email: %v", err), err)
	}
	if sinkErr != nil {
		svc.logger.Warn(sinkErr.Error(), sinkErr)
	}
	return nil
}
