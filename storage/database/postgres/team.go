package pgrepos

import (
	"context"
	"time"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/team"
)

const (
	teamColumns     = "id, name, age_group, season, coach_id, created_at"
	playerColumns   = "id, team_id, user_id, full_name, jersey_number, position, active"
	scheduleColumns = "id, team_id, title, event_type, starts_at, ends_at, location, notes, created_by, created_at"
)

type teamRepository struct {
	exec core.DBExecutor
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(exec core.DBExecutor) *teamRepository {
	return &teamRepository{exec: exec}
}

func (repo teamRepository) Teams(ctx context.Context) ([]team.Team, error) {
	teams := make([]team.Team, 0)
	if err := repo.exec.SelectContext(ctx, &teams, "SELECT "+teamColumns+" FROM teams ORDER BY name"); err != nil {
		return nil, classify("teams", err)
	}
	return teams, nil
}

func (repo teamRepository) InsertTeam(ctx context.Context, t *team.Team) error {
	_, err := repo.exec.ExecContext(ctx,
		"INSERT INTO teams ("+teamColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		t.ID, t.Name, t.AgeGroup, t.Season, t.CoachID, t.CreatedAt,
	)
	return classify("teams", err)
}

// Players lists the active players of teamID, or of every team when teamID is "".
func (repo teamRepository) Players(ctx context.Context, teamID string) ([]team.Player, error) {
	var w whereBuilder
	w.add("active")
	if teamID != "" {
		if !validID(teamID) {
			return []team.Player{}, nil
		}
		w.add("team_id = ?", teamID)
	}
	players := make([]team.Player, 0)
	err := repo.exec.SelectContext(ctx, &players,
		"SELECT "+playerColumns+" FROM players"+w.String()+" ORDER BY jersey_number NULLS LAST, full_name", w.args...)
	if err != nil {
		return nil, classify("players", err)
	}
	return players, nil
}

func (repo teamRepository) GetPlayer(ctx context.Context, playerID string) (*team.Player, error) {
	if !validID(playerID) {
		return nil, notFound("player")
	}
	var p team.Player
	err := repo.exec.GetContext(ctx, &p, "SELECT "+playerColumns+" FROM players WHERE id = $1", playerID)
	if err != nil {
		return nil, trapNoRowsErr(err, notFound("player"), "players")
	}
	return &p, nil
}

// Schedules lists the events of teamID starting between from and to, both days included.
func (repo teamRepository) Schedules(ctx context.Context, teamID string, from, to time.Time) ([]team.Schedule, error) {
	events := make([]team.Schedule, 0)
	if !validID(teamID) {
		return events, nil
	}
	err := repo.exec.SelectContext(ctx, &events,
		"SELECT "+scheduleColumns+` FROM schedules
		WHERE team_id = $1 AND starts_at::date BETWEEN $2::date AND $3::date
		ORDER BY starts_at`,
		teamID, core.NewDate(from), core.NewDate(to),
	)
	if err != nil {
		return nil, classify("schedules", err)
	}
	return events, nil
}

func (repo teamRepository) InsertSchedule(ctx context.Context, s *team.Schedule) error {
	_, err := repo.exec.ExecContext(ctx,
		"INSERT INTO schedules ("+scheduleColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		s.ID, s.TeamID, s.Title, string(s.EventType), s.StartsAt, s.EndsAt, s.Location, s.Notes, s.CreatedBy, s.CreatedAt,
	)
	return classify("schedules", err)
}

func (repo teamRepository) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if !validID(scheduleID) {
		return notFound("schedule")
	}
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", scheduleID)
	if err != nil {
		return classify("schedules", err)
	}
	return expectOne(res, notFound("schedule"), "schedules")
}
