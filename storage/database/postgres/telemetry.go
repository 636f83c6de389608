package pgrepos

import (
	"context"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/telemetry"
)

type telemetryRepository struct {
	exec core.DBExecutor
}

var _ telemetry.Repository = (*telemetryRepository)(nil) // interface compliance check

func NewTelemetryRepository(exec core.DBExecutor) *telemetryRepository {
	return &telemetryRepository{exec: exec}
}

func (repo telemetryRepository) InsertEvent(ctx context.Context, e *telemetry.Event) error {
	_, err := repo.exec.ExecContext(ctx,
		`INSERT INTO analytics_events (id, user_id, event_name, properties, page_path, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.Name, e.Properties, e.Path, e.SessionID, e.CreatedAt,
	)
	return classify("analytics_events", err)
}
