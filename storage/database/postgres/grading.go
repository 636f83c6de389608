package pgrepos

import (
	"context"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/grading"
)

const gradeColumns = "id, event_id, player_id, items, overall::float8 AS overall, graded_by, updated_at"

type gradingRepository struct {
	exec core.DBExecutor
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(exec core.DBExecutor) *gradingRepository {
	return &gradingRepository{exec: exec}
}

func (repo gradingRepository) Metrics(ctx context.Context) ([]grading.Metric, error) {
	metrics := make([]grading.Metric, 0)
	err := repo.exec.SelectContext(ctx, &metrics,
		"SELECT id, name, description, priority, active FROM grading_metrics WHERE active ORDER BY priority DESC, name")
	if err != nil {
		return nil, classify("grading_metrics", err)
	}
	return metrics, nil
}

func (repo gradingRepository) ForEvent(ctx context.Context, eventID string) ([]grading.Grade, error) {
	return repo.query(ctx, "event_id", eventID)
}

func (repo gradingRepository) ForPlayer(ctx context.Context, playerID string) ([]grading.Grade, error) {
	return repo.query(ctx, "player_id", playerID)
}

func (repo gradingRepository) query(ctx context.Context, column, id string) ([]grading.Grade, error) {
	grades := make([]grading.Grade, 0)
	if !validID(id) {
		return grades, nil
	}
	err := repo.exec.SelectContext(ctx, &grades,
		"SELECT "+gradeColumns+" FROM player_grades WHERE "+column+" = $1 ORDER BY updated_at DESC", id)
	if err != nil {
		return nil, classify("player_grades", err)
	}
	return grades, nil
}
