package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/cache"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/notify"
)

var ErrPlayerNotLinked = errors.New("player has no linked user account")

const (
	procAssign      = "rpc_assign_membership_v2"
	procSummary     = "fn_get_membership_summary_v2"
	procMaintenance = "rpc_membership_maintenance"

	summaryCachePrefix = "membership_summary:"
	typesCacheKey      = "membership_types"

	DefaultLowCreditThreshold = 2
)

type (
	Repository interface {
		// PlayerUserID resolves the user account linked to a player.
		PlayerUserID(ctx context.Context, playerID string) (string, error)
		QueryTypes(ctx context.Context) ([]Type, error)
		ForUser(ctx context.Context, userID string) ([]Membership, error)
	}

	// Notifier delivers low-credit notices; notify.Dispatcher implements it.
	Notifier interface {
		NotifyAll(ctx context.Context, deliveries []notify.Delivery) error
	}

	Service struct {
		gw           gateway.Gateway
		repo         Repository
		summaryCache *cache.Cache[Summary]
		typesCache   *cache.Cache[[]Type]
		notifier     Notifier
		logger       core.Logger
		threshold    int
	}
)

func NewService(
	gw gateway.Gateway,
	repo Repository,
	summaryCache *cache.Cache[Summary],
	typesCache *cache.Cache[[]Type],
	notifier Notifier,
	logger core.Logger,
	lowCreditThreshold int,
) *Service {
	if lowCreditThreshold <= 0 {
		lowCreditThreshold = DefaultLowCreditThreshold
	}
	return &Service{
		gw:           gw,
		repo:         repo,
		summaryCache: summaryCache,
		typesCache:   typesCache,
		notifier:     notifier,
		logger:       logger,
		threshold:    lowCreditThreshold,
	}
}

// Assign gives a user a membership through the user keyed procedure.
func (svc *Service) Assign(ctx context.Context, am AssignMembership) (Membership, error) {
	autoDeactivate := true
	if am.AutoDeactivate != nil {
		autoDeactivate = *am.AutoDeactivate
	}
	start, err := core.ParseDate(am.StartDate)
	if err != nil {
		return Membership{}, core.NewValidationError(err, core.FieldError{Field: "start_date", Error: "invalid date"})
	}
	var end core.Date
	if am.EndDate != "" {
		t, err := core.ParseDate(am.EndDate)
		if err != nil {
			return Membership{}, core.NewValidationError(err, core.FieldError{Field: "end_date", Error: "invalid date"})
		}
		end = core.NewDate(t)
	}
	var notes interface{}
	if am.Notes != "" {
		notes = am.Notes
	}

	var m Membership
	err = svc.gw.Call(ctx, procAssign, []gateway.Param{
		gateway.P("p_user_id", am.UserID),
		gateway.P("p_membership_type_id", am.MembershipTypeID),
		gateway.P("p_start_date", core.NewDate(start)),
		gateway.P("p_end_date", end),
		gateway.P("p_override_class_count", am.OverrideClassCount),
		gateway.P("p_auto_deactivate", autoDeactivate),
		gateway.P("p_notes", notes),
	}, &m)
	if err != nil {
		return Membership{}, errors.Wrap(err, "assigning membership")
	}
	svc.InvalidateSummary(am.UserID)
	return m, nil
}

// AssignForPlayer is the player keyed entry point. It resolves the player's
// account and assigns through the user keyed path.
func (svc *Service) AssignForPlayer(ctx context.Context, playerID string, am AssignMembership) (Membership, error) {
	userID, err := svc.repo.PlayerUserID(ctx, playerID)
	if err != nil {
		return Membership{}, errors.Wrap(err, "resolving player account")
	}
	if userID == "" {
		return Membership{}, core.NewValidationError(ErrPlayerNotLinked, core.FieldError{Field: "player_id", Error: ErrPlayerNotLinked.Error()})
	}
	am.UserID = userID
	return svc.Assign(ctx, am)
}

// Summary returns the credit summary of userID, cached until the next change.
func (svc *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	return svc.summaryCache.GetOrLoad(summaryCachePrefix+userID, func() (Summary, error) {
		var s Summary
		if err := svc.gw.Query(ctx, procSummary, []gateway.Param{gateway.P("p_user_id", userID)}, &s); err != nil {
			return Summary{}, errors.Wrap(err, "fetching membership summary")
		}
		s.UserID = userID
		s.recompute()
		return s, nil
	})
}

func (svc *Service) InvalidateSummary(userID string) {
	svc.summaryCache.Invalidate(summaryCachePrefix + userID)
}

func (svc *Service) ForUser(ctx context.Context, userID string) ([]Membership, error) {
	return svc.repo.ForUser(ctx, userID)
}

func (svc *Service) Types(ctx context.Context) ([]Type, error) {
	return svc.typesCache.GetOrLoad(typesCacheKey, func() ([]Type, error) {
		types, err := svc.repo.QueryTypes(ctx)
		return types, errors.Wrap(err, "querying membership types")
	})
}

// Sweep runs the maintenance procedure for today: expired or exhausted
// memberships are deactivated and users running low on credits are notified.
// Notification failures are logged and do not fail the sweep.
func (svc *Service) Sweep(ctx context.Context, today time.Time) (SweepResult, error) {
	var res SweepResult
	err := svc.gw.Call(ctx, procMaintenance, []gateway.Param{
		gateway.P("p_today", core.NewDate(today)),
		gateway.P("p_low_credit_threshold", svc.threshold),
	}, &res)
	if err != nil {
		return SweepResult{}, errors.Wrap(err, "running membership maintenance")
	}
	// deactivations change summaries of unknown users
	svc.summaryCache.Invalidate("")

	deliveries := make([]notify.Delivery, 0, len(res.LowCredit))
	for _, lc := range res.LowCredit {
		deliveries = append(deliveries, notify.Delivery{
			UserID: lc.UserID,
			Notice: notify.Notice{
				Topic:        notify.TopicMembership,
				Subject:      "Your membership is running low",
				Text:         fmt.Sprintf("Your %s membership has %d class(es) left.", lc.TypeName, lc.Remaining),
				TemplateName: "membership_low_credit",
				TemplateData: map[string]interface{}{"Name": lc.FullName, "TypeName": lc.TypeName, "Remaining": lc.Remaining},
			},
		})
	}
	if len(deliveries) > 0 && svc.notifier != nil {
		if err := svc.notifier.NotifyAll(ctx, deliveries); err != nil {
			svc.logger.Warn(fmt.Sprintf("low credit notices: %v", err), err)
		}
	}
	svc.logger.Info(fmt.Sprintf("membership sweep %s: %d deactivated, %d low on credits",
		core.NewDate(today), res.Deactivated, len(res.LowCredit)))
	return res, nil
}
