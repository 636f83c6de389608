package pgrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/user"
)

const profileColumns = `id, email, full_name, phone, approval_status, rejection_reason,
	approved_at, approved_by, created_at, updated_at`

var profileOrderings = map[string]string{
	"name":       "full_name",
	"email":      "email",
	"status":     "approval_status",
	"created_at": "created_at",
}

type userRepository struct {
	exec core.DBExecutor
}

var (
	_ user.Repository  = (*userRepository)(nil) // interface compliance check
	_ user.Provisioner = (*userRepository)(nil)
)

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	if !validID(id) {
		return user.Profile{}, user.ErrNotFound
	}
	var prof user.Profile
	err := repo.exec.GetContext(ctx, &prof, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	if err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrNotFound, "profiles")
	}
	return prof, nil
}

func (repo userRepository) FilterProfiles(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	var w whereBuilder

	// profiles with full_name or email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(full_name ILIKE ? OR email ILIKE ?)", val, val)
	}
	if filter.Status != "" {
		w.add("approval_status = ?", string(filter.Status))
	}
	if filter.Role != "" {
		w.add("id IN (SELECT user_id FROM user_roles WHERE role = ? AND is_active)", string(filter.Role))
	}

	q := "SELECT " + profileColumns + " FROM profiles" + w.String() +
		" ORDER BY " + core.OrderBy(filter.Orderings, profileOrderings, "created_at DESC")

	profs := make([]user.Profile, 0)
	if err := repo.exec.SelectContext(ctx, &profs, q, w.args...); err != nil {
		return nil, classify("profiles", err)
	}
	return profs, nil
}

func (repo userRepository) UpdateProfile(ctx context.Context, id string, up user.UpdateProfile) (user.Profile, error) {
	if !validID(id) {
		return user.Profile{}, user.ErrNotFound
	}
	var prof user.Profile
	err := repo.exec.GetContext(ctx, &prof,
		`UPDATE profiles SET full_name = $2, phone = $3, updated_at = now()
		WHERE id = $1 RETURNING `+profileColumns,
		id, up.FullName, null.NewString(up.Phone, up.Phone != ""),
	)
	if err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrNotFound, "profiles")
	}
	return prof, nil
}

// SaveProfile creates prof or refreshes its email and name. The admin adduser
// command provisions accounts issued by the auth backend through it.
func (repo userRepository) SaveProfile(ctx context.Context, prof user.Profile) (user.Profile, error) {
	var saved user.Profile
	err := repo.exec.GetContext(ctx, &saved,
		`INSERT INTO profiles (id, email, full_name, phone, approval_status, approved_at)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $5 = 'approved' THEN now() END)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, updated_at = now()
		RETURNING `+profileColumns,
		prof.ID, prof.Email, prof.FullName, prof.Phone, string(prof.ApprovalStatus),
	)
	if err != nil {
		return user.Profile{}, classify("profiles", err)
	}
	return saved, nil
}

// SetRoles activates roles for userID and deactivates every other role the user holds.
func (repo userRepository) SetRoles(ctx context.Context, userID string, roles []user.Role) error {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	_, err := repo.exec.ExecContext(ctx,
		`WITH wanted AS (SELECT unnest($2::text[]) AS role),
		upserted AS (
			INSERT INTO user_roles (user_id, role, is_active)
			SELECT $1, role, true FROM wanted
			ON CONFLICT (user_id, role) DO UPDATE SET is_active = true
		)
		UPDATE user_roles SET is_active = false
		WHERE user_id = $1 AND role <> ALL ($2::text[])`,
		userID, pq.Array(names),
	)
	return classify("user_roles", err)
}
