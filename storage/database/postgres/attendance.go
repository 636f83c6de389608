package pgrepos

import (
	"context"
	"time"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/attendance"
)

const attendanceColumns = "a.id, a.event_id, a.player_id, a.status, a.notes, a.marked_by, a.marked_at, a.updated_at"

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func (repo attendanceRepository) ForEvent(ctx context.Context, eventID string) ([]attendance.Record, error) {
	recs := make([]attendance.Record, 0)
	if !validID(eventID) {
		return recs, nil
	}
	err := repo.exec.SelectContext(ctx, &recs,
		"SELECT "+attendanceColumns+" FROM attendance a WHERE a.event_id = $1 ORDER BY a.marked_at", eventID)
	if err != nil {
		return nil, classify("attendance", err)
	}
	return recs, nil
}

// ForPlayer lists the player's records for events starting between from and to, both days included.
func (repo attendanceRepository) ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]attendance.Record, error) {
	recs := make([]attendance.Record, 0)
	if !validID(playerID) {
		return recs, nil
	}
	err := repo.exec.SelectContext(ctx, &recs,
		"SELECT "+attendanceColumns+` FROM attendance a
		JOIN schedules s ON s.id = a.event_id
		WHERE a.player_id = $1 AND s.starts_at::date BETWEEN $2::date AND $3::date
		ORDER BY s.starts_at`,
		playerID, core.NewDate(from), core.NewDate(to),
	)
	if err != nil {
		return nil, classify("attendance", err)
	}
	return recs, nil
}

func (repo attendanceRepository) ReportRows(ctx context.Context, teamID string, from, to time.Time) ([]attendance.ReportRow, error) {
	rows := make([]attendance.ReportRow, 0)
	if !validID(teamID) {
		return rows, nil
	}
	err := repo.exec.SelectContext(ctx, &rows,
		`SELECT s.starts_at::date AS event_date, s.title AS event_title, p.full_name AS player_name,
			a.status, coalesce(a.notes, '') AS notes
		FROM attendance a
		JOIN schedules s ON s.id = a.event_id
		JOIN players p ON p.id = a.player_id
		WHERE s.team_id = $1 AND s.starts_at::date BETWEEN $2::date AND $3::date
		ORDER BY s.starts_at, p.full_name`,
		teamID, core.NewDate(from), core.NewDate(to),
	)
	if err != nil {
		return nil, classify("attendance", err)
	}
	return rows, nil
}
