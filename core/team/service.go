package team

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/cache"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/retry"
)

var ErrNotFound = errors.WithMessage(core.ErrNotFound, "team")

const teamsCacheKey = "teams"

type (
	Repository interface {
		Teams(ctx context.Context) ([]Team, error)
		InsertTeam(ctx context.Context, t *Team) error
		Players(ctx context.Context, teamID string) ([]Player, error)
		GetPlayer(ctx context.Context, playerID string) (*Player, error)

		Schedules(ctx context.Context, teamID string, from, to time.Time) ([]Schedule, error)
		InsertSchedule(ctx context.Context, s *Schedule) error
		DeleteSchedule(ctx context.Context, scheduleID string) error
	}

	Service struct {
		repo        Repository
		teamsCache  *cache.Cache[[]Team]
		readOptions retry.Options
	}
)

func NewService(repo Repository, teamsCache *cache.Cache[[]Team], readOptions retry.Options) *Service {
	return &Service{repo: repo, teamsCache: teamsCache, readOptions: readOptions}
}

// Teams lists every team visible to the caller; the list is shared for a short while.
func (svc *Service) Teams(ctx context.Context) ([]Team, error) {
	return svc.teamsCache.GetOrLoad(teamsCacheKey, func() ([]Team, error) {
		var teams []Team
		err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
			var err error
			teams, err = svc.repo.Teams(ctx)
			return err
		})
		return teams, errors.Wrap(err, "querying teams")
	})
}

func (svc *Service) Team(ctx context.Context, teamID string) (*Team, error) {
	teams, err := svc.Teams(ctx)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if teams[i].ID == teamID {
			return &teams[i], nil
		}
	}
	return nil, ErrNotFound
}

func (svc *Service) CreateTeam(ctx context.Context, nt NewTeam) (*Team, error) {
	t := &Team{
		ID:        uuid.NewString(),
		Name:      core.CleanString(nt.Name),
		CreatedAt: core.NowFunc().UTC(),
	}
	if nt.AgeGroup != "" {
		t.AgeGroup = null.StringFrom(nt.AgeGroup)
	}
	if nt.Season != "" {
		t.Season = null.StringFrom(nt.Season)
	}
	if nt.CoachID != "" {
		t.CoachID = null.StringFrom(nt.CoachID)
	}
	if err := svc.repo.InsertTeam(ctx, t); err != nil {
		return nil, errors.Wrap(err, "inserting team")
	}
	svc.teamsCache.Invalidate(teamsCacheKey)
	return t, nil
}

func (svc *Service) Players(ctx context.Context, teamID string) ([]Player, error) {
	var players []Player
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		players, err = svc.repo.Players(ctx, teamID)
		return err
	})
	return players, errors.Wrap(err, "querying players")
}

func (svc *Service) Player(ctx context.Context, playerID string) (*Player, error) {
	p, err := svc.repo.GetPlayer(ctx, playerID)
	return p, errors.Wrap(err, "fetching player")
}

func (svc *Service) Schedules(ctx context.Context, teamID string, from, to time.Time) ([]Schedule, error) {
	if to.Before(from) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must not be before from"})
	}
	var events []Schedule
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		events, err = svc.repo.Schedules(ctx, teamID, from, to)
		return err
	})
	return events, errors.Wrap(err, "querying schedules")
}

func (svc *Service) CreateSchedule(ctx context.Context, createdBy string, ns NewSchedule) (*Schedule, error) {
	s := &Schedule{
		ID:        uuid.NewString(),
		TeamID:    ns.TeamID,
		Title:     core.CleanString(ns.Title),
		EventType: ns.EventType,
		StartsAt:  ns.StartsAt.UTC(),
		EndsAt:    ns.EndsAt.UTC(),
		CreatedBy: createdBy,
		CreatedAt: core.NowFunc().UTC(),
	}
	if ns.Location != "" {
		s.Location = null.StringFrom(core.CleanString(ns.Location))
	}
	if ns.Notes != "" {
		s.Notes = null.StringFrom(ns.Notes)
	}
	if err := svc.repo.InsertSchedule(ctx, s); err != nil {
		return nil, errors.Wrap(err, "inserting schedule")
	}
	return s, nil
}

func (svc *Service) DeleteSchedule(ctx context.Context, scheduleID string) error {
	return errors.Wrap(svc.repo.DeleteSchedule(ctx, scheduleID), "deleting schedule")
}
