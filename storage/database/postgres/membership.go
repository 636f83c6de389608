package pgrepos

import (
	"context"

	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/membership"
)

const membershipColumns = `id, user_id, membership_type_id, type_name, allocation_type, allocated, used,
	start_date, end_date, is_active, auto_deactivate, notes, created_at`

type membershipRepository struct {
	exec core.DBExecutor
}

var _ membership.Repository = (*membershipRepository)(nil) // interface compliance check

func NewMembershipRepository(exec core.DBExecutor) *membershipRepository {
	return &membershipRepository{exec: exec}
}

// PlayerUserID returns "" when the player has no linked account.
func (repo membershipRepository) PlayerUserID(ctx context.Context, playerID string) (string, error) {
	if !validID(playerID) {
		return "", notFound("player")
	}
	var userID null.String
	err := repo.exec.GetContext(ctx, &userID, "SELECT user_id FROM players WHERE id = $1", playerID)
	if err != nil {
		return "", trapNoRowsErr(err, notFound("player"), "players")
	}
	return userID.String, nil
}

func (repo membershipRepository) QueryTypes(ctx context.Context) ([]membership.Type, error) {
	types := make([]membership.Type, 0)
	err := repo.exec.SelectContext(ctx, &types,
		`SELECT id, name, allocation_type, class_count, duration_days, price::float8 AS price, is_active
		FROM membership_types WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, classify("membership_types", err)
	}
	return types, nil
}

func (repo membershipRepository) ForUser(ctx context.Context, userID string) ([]membership.Membership, error) {
	ms := make([]membership.Membership, 0)
	if !validID(userID) {
		return ms, nil
	}
	err := repo.exec.SelectContext(ctx, &ms,
		"SELECT "+membershipColumns+` FROM membership_view
		WHERE user_id = $1 ORDER BY is_active DESC, start_date DESC NULLS LAST`, userID)
	if err != nil {
		return nil, classify("memberships", err)
	}
	return ms, nil
}
