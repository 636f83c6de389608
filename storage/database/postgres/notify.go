package pgrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/notify"
	"github.com/hoopdesk/hoopdesk/core/user"
)

const preferenceColumns = "user_id, email_enabled, telegram_chat_id, membership_alerts, health_alerts"

type notificationRepository struct {
	exec core.DBExecutor
}

var _ notify.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{exec: exec}
}

func (repo notificationRepository) GetPreferences(ctx context.Context, userID string) (notify.Preferences, error) {
	var prefs notify.Preferences
	err := repo.exec.GetContext(ctx, &prefs,
		"SELECT "+preferenceColumns+" FROM notification_preferences WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.DefaultPreferences(userID), nil
	}
	if err != nil {
		return notify.Preferences{}, classify("notification_preferences", err)
	}
	return prefs, nil
}

func (repo notificationRepository) SavePreferences(ctx context.Context, prefs notify.Preferences) (notify.Preferences, error) {
	var saved notify.Preferences
	err := repo.exec.GetContext(ctx, &saved,
		`INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET email_enabled     = EXCLUDED.email_enabled,
			telegram_chat_id  = EXCLUDED.telegram_chat_id,
			membership_alerts = EXCLUDED.membership_alerts,
			health_alerts     = EXCLUDED.health_alerts,
			updated_at        = now()
		RETURNING `+preferenceColumns,
		prefs.UserID, prefs.EmailEnabled, prefs.TelegramChatID, prefs.MembershipAlerts, prefs.HealthAlerts,
	)
	if err != nil {
		return notify.Preferences{}, classify("notification_preferences", err)
	}
	return saved, nil
}

func (repo notificationRepository) GetContact(ctx context.Context, userID string) (notify.Contact, error) {
	if !validID(userID) {
		return notify.Contact{}, user.ErrNotFound
	}
	var c notify.Contact
	err := repo.exec.GetContext(ctx, &c, "SELECT full_name, email FROM profiles WHERE id = $1", userID)
	if err != nil {
		return notify.Contact{}, trapNoRowsErr(err, user.ErrNotFound, "profiles")
	}
	return c, nil
}
