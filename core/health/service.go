package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/notify"
)

const procDashboard = "rpc_dashboard_health"

type (
	Repository interface {
		// Upsert stores c, replacing the player's check-in of the same day.
		Upsert(ctx context.Context, c *Checkin) error
		ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]Checkin, error)
		PlayerName(ctx context.Context, playerID string) (string, error)
		// StaffOf lists the user ids of the coaches and staff of the player's team.
		StaffOf(ctx context.Context, playerID string) ([]string, error)
	}

	Notifier interface {
		NotifyAll(ctx context.Context, deliveries []notify.Delivery) error
	}

	Service struct {
		gw         gateway.Gateway
		repo       Repository
		functions  core.FunctionDispatcher
		notifier   Notifier
		logger     core.Logger
		thresholds Thresholds
		alerts     sync.WaitGroup
	}
)

func NewService(
	gw gateway.Gateway,
	repo Repository,
	functions core.FunctionDispatcher,
	notifier Notifier,
	logger core.Logger,
	thresholds Thresholds,
) *Service {
	if thresholds.Soreness <= 0 {
		thresholds.Soreness = DefaultThresholds.Soreness
	}
	if thresholds.Energy <= 0 {
		thresholds.Energy = DefaultThresholds.Energy
	}
	return &Service{
		gw:         gw,
		repo:       repo,
		functions:  functions,
		notifier:   notifier,
		logger:     logger,
		thresholds: thresholds,
	}
}

// Submit records today's check-in (or the given day's) and raises an alert in
// the background when the answers call for it. Alert failures are only logged.
func (svc *Service) Submit(ctx context.Context, sc SubmitCheckin) (*Checkin, error) {
	day := core.Today()
	if sc.Date != "" {
		d, err := core.ParseDate(sc.Date)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "checkin_date", Error: "invalid date"})
		}
		day = d
	}

	now := core.NowFunc().UTC()
	c := &Checkin{
		ID:          uuid.NewString(),
		PlayerID:    sc.PlayerID,
		CheckinDate: core.NewDate(day),
		Energy:      sc.Energy,
		Soreness:    sc.Soreness,
		SleepHours:  null.Float64FromPtr(sc.SleepHours),
		Mood:        null.IntFromPtr(sc.Mood),
		Injury:      sc.Injury,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sc.InjuryNotes != "" {
		c.InjuryNotes = null.StringFrom(sc.InjuryNotes)
	}
	if sc.Notes != "" {
		c.Notes = null.StringFrom(sc.Notes)
	}
	if err := svc.repo.Upsert(ctx, c); err != nil {
		return nil, errors.Wrap(err, "saving check-in")
	}

	if reasons := svc.thresholds.Reasons(*c); len(reasons) > 0 {
		svc.alerts.Add(1)
		go func() {
			defer svc.alerts.Done()
			svc.alert(context.WithoutCancel(ctx), *c, reasons)
		}()
	}
	return c, nil
}

// Wait blocks until the alerts raised so far are sent.
func (svc *Service) Wait() {
	svc.alerts.Wait()
}

func (svc *Service) alert(ctx context.Context, c Checkin, reasons []string) {
	name, err := svc.repo.PlayerName(ctx, c.PlayerID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("health alert %s: player name: %v", c.PlayerID, err), err)
		name = c.PlayerID
	}

	a := Alert{
		PlayerID:   c.PlayerID,
		PlayerName: name,
		Date:       c.CheckinDate.String(),
		Energy:     c.Energy,
		Soreness:   c.Soreness,
		Injury:     c.Injury,
		Notes:      c.InjuryNotes.String,
		Reasons:    reasons,
	}
	if err := svc.functions.Dispatch(ctx, core.FnHealthAlertEmail, a); err != nil {
		svc.logger.Error(fmt.Sprintf("health alert %s: dispatch: %v", c.PlayerID, err), err)
	}

	if svc.notifier == nil {
		return
	}
	staff, err := svc.repo.StaffOf(ctx, c.PlayerID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("health alert %s: staff: %v", c.PlayerID, err), err)
		return
	}
	text := fmt.Sprintf("%s checked in on %s: %s (energy %d, soreness %d).",
		name, a.Date, strings.Join(reasons, ", "), c.Energy, c.Soreness)
	deliveries := make([]notify.Delivery, 0, len(staff))
	for _, userID := range staff {
		deliveries = append(deliveries, notify.Delivery{
			UserID: userID,
			Notice: notify.Notice{Topic: notify.TopicHealth, Subject: "Health alert: " + name, Text: text},
		})
	}
	if err := svc.notifier.NotifyAll(ctx, deliveries); err != nil {
		svc.logger.Warn(fmt.Sprintf("health alert %s: notify: %v", c.PlayerID, err), err)
	}
}

func (svc *Service) ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]Checkin, error) {
	checkins, err := svc.repo.ForPlayer(ctx, playerID, from, to)
	return checkins, errors.Wrap(err, "querying check-ins")
}

// Dashboard returns today's team wide health overview.
func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	if err := svc.gw.Query(ctx, procDashboard, nil, &d); err != nil {
		return Dashboard{}, errors.Wrap(err, "fetching health dashboard")
	}
	return d, nil
}
