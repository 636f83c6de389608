package pgrepos

import (
	"context"
	"time"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/health"
)

const checkinColumns = `id, player_id, checkin_date, energy_level, soreness_level, sleep_hours::float8 AS sleep_hours,
	mood, has_injury, injury_notes, notes, created_at, updated_at`

type healthRepository struct {
	exec core.DBExecutor
}

var _ health.Repository = (*healthRepository)(nil) // interface compliance check

func NewHealthRepository(exec core.DBExecutor) *healthRepository {
	return &healthRepository{exec: exec}
}

// Upsert keeps the id and creation time of an earlier check-in of the same day.
func (repo healthRepository) Upsert(ctx context.Context, c *health.Checkin) error {
	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := repo.exec.GetContext(ctx, &stored,
		`INSERT INTO daily_health_checkins (id, player_id, checkin_date, energy_level, soreness_level,
			sleep_hours, mood, has_injury, injury_notes, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (player_id, checkin_date) DO UPDATE
		SET energy_level   = EXCLUDED.energy_level,
			soreness_level = EXCLUDED.soreness_level,
			sleep_hours    = EXCLUDED.sleep_hours,
			mood           = EXCLUDED.mood,
			has_injury     = EXCLUDED.has_injury,
			injury_notes   = EXCLUDED.injury_notes,
			notes          = EXCLUDED.notes,
			updated_at     = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`,
		c.ID, c.PlayerID, c.CheckinDate, c.Energy, c.Soreness,
		c.SleepHours, c.Mood, c.Injury, c.InjuryNotes, c.Notes, c.UpdatedAt,
	)
	if err != nil {
		return classify("daily_health_checkins", err)
	}
	c.ID, c.CreatedAt, c.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (repo healthRepository) ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]health.Checkin, error) {
	checkins := make([]health.Checkin, 0)
	if !validID(playerID) {
		return checkins, nil
	}
	err := repo.exec.SelectContext(ctx, &checkins,
		"SELECT "+checkinColumns+` FROM daily_health_checkins
		WHERE player_id = $1 AND checkin_date BETWEEN $2::date AND $3::date
		ORDER BY checkin_date DESC`,
		playerID, core.NewDate(from), core.NewDate(to),
	)
	if err != nil {
		return nil, classify("daily_health_checkins", err)
	}
	return checkins, nil
}

func (repo healthRepository) PlayerName(ctx context.Context, playerID string) (string, error) {
	if !validID(playerID) {
		return "", notFound("player")
	}
	var name string
	err := repo.exec.GetContext(ctx, &name, "SELECT full_name FROM players WHERE id = $1", playerID)
	if err != nil {
		return "", trapNoRowsErr(err, notFound("player"), "players")
	}
	return name, nil
}

// StaffOf returns the coach of the player's team and every approved admin or staff member.
func (repo healthRepository) StaffOf(ctx context.Context, playerID string) ([]string, error) {
	ids := make([]string, 0)
	if !validID(playerID) {
		return ids, nil
	}
	err := repo.exec.SelectContext(ctx, &ids,
		`SELECT t.coach_id FROM players p JOIN teams t ON t.id = p.team_id
		WHERE p.id = $1 AND t.coach_id IS NOT NULL
		UNION
		SELECT r.user_id FROM user_roles r JOIN profiles pr ON pr.id = r.user_id
		WHERE r.is_active AND pr.approval_status = 'approved' AND r.role IN ('super_admin', 'admin', 'staff')`,
		playerID,
	)
	if err != nil {
		return nil, classify("user_roles", err)
	}
	return ids, nil
}
