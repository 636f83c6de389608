package grading

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/retry"
)

const procSaveGrades = "rpc_save_player_grades"

type (
	Repository interface {
		Metrics(ctx context.Context) ([]Metric, error)
		ForEvent(ctx context.Context, eventID string) ([]Grade, error)
		ForPlayer(ctx context.Context, playerID string) ([]Grade, error)
	}

	Service struct {
		gw          gateway.Gateway
		repo        Repository
		logger      core.Logger
		readOptions retry.Options
	}

	saved struct {
		ID      string  `json:"id"`
		Overall float64 `json:"overall"`
	}
)

func NewService(gw gateway.Gateway, repo Repository, logger core.Logger, readOptions retry.Options) *Service {
	return &Service{gw: gw, repo: repo, logger: logger, readOptions: readOptions}
}

func (svc *Service) Metrics(ctx context.Context) ([]Metric, error) {
	var metrics []Metric
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		metrics, err = svc.repo.Metrics(ctx)
		return err
	})
	return metrics, errors.Wrap(err, "querying metrics")
}

// Save stores the scores of a player for an event. The returned grade always
// carries the overall computed by the server; nothing is returned on failure.
func (svc *Service) Save(ctx context.Context, sg SaveGrades) (Grade, error) {
	if len(sg.Items) == 0 {
		return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "items", Error: "this field is required"})
	}
	g := Provisional(sg.EventID, sg.PlayerID, sg.Items)

	var res saved
	err := svc.gw.Call(ctx, procSaveGrades, []gateway.Param{
		gateway.P("p_event_id", sg.EventID),
		gateway.P("p_player_id", sg.PlayerID),
		gateway.P("p_items", sg.Items),
	}, &res)
	if err != nil {
		return Grade{}, errors.Wrap(err, "saving grades")
	}

	if math.Abs(g.Overall-res.Overall) > 0.005 {
		svc.logger.Debug(fmt.Sprintf("grade %s: provisional overall %.2f replaced by %.2f", res.ID, g.Overall, res.Overall))
	}
	g.ID = res.ID
	g.Overall = res.Overall
	g.Confirmed = true
	return g, nil
}

// ForEvent lists the grades given at an event. Stored grades are confirmed.
func (svc *Service) ForEvent(ctx context.Context, eventID string) ([]Grade, error) {
	var grades []Grade
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		grades, err = svc.repo.ForEvent(ctx, eventID)
		return err
	})
	return confirmAll(grades), errors.Wrap(err, "querying event grades")
}

func (svc *Service) ForPlayer(ctx context.Context, playerID string) ([]Grade, error) {
	var grades []Grade
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		grades, err = svc.repo.ForPlayer(ctx, playerID)
		return err
	})
	return confirmAll(grades), errors.Wrap(err, "querying player grades")
}

func confirmAll(grades []Grade) []Grade {
	for i := range grades {
		grades[i].Confirmed = true
	}
	return grades
}
