package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/user"
)

func TestHome(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Hoopdesk API!", rec.Body.String())
}

func TestGate(t *testing.T) {
	app := setup(t)

	expired, err := GenerateToken(NewClaims(adminID, "a@test.io", testAudience, -time.Hour), testSecret)
	require.NoError(t, err)
	foreign, err := GenerateToken(NewClaims(adminID, "a@test.io", "service_role", time.Hour), testSecret)
	require.NoError(t, err)
	forged, err := GenerateToken(NewClaims(adminID, "a@test.io", testAudience, time.Hour), "not-the-secret")
	require.NoError(t, err)

	invalidJWT := marchallObj(t, httpErr{Error: "invalid or expired jwt"})
	unauthenticated := marchallObj(t, httpErr{Error: "user not authenticated"})

	runHTTPTests(t, app, []httpTest{
		{"no token", http.MethodGet, "/v1/users", nil, "", http.StatusUnauthorized, marchallObj(t, errMissingToken)},
		{"expired token", http.MethodGet, "/v1/users", nil, expired, http.StatusUnauthorized, invalidJWT},
		{"forged token", http.MethodGet, "/v1/users", nil, forged, http.StatusUnauthorized, invalidJWT},
		{"wrong audience", http.MethodGet, "/v1/users", nil, foreign, http.StatusUnauthorized, unauthenticated},
		{"pending", http.MethodGet, "/v1/users", nil, getToken(t, pendingID), http.StatusForbidden,
			marchallObj(t, httpErr{Error: "account pending approval"})},
		{"unknown user is pending", http.MethodGet, "/v1/users", nil, getToken(t, chatID), http.StatusForbidden,
			marchallObj(t, httpErr{Error: "account pending approval"})},
		{"rejected admin", http.MethodGet, "/v1/users", nil, getToken(t, rejectID), http.StatusForbidden,
			marchallObj(t, httpErr{Error: "account rejected"})},
		{"coach is not admin", http.MethodGet, "/v1/users", nil, getToken(t, coachID), http.StatusForbidden,
			marchallObj(t, httpErr{Error: "permission denied"})},
		{"admin", http.MethodGet, "/v1/users", nil, getToken(t, adminID), http.StatusOK, marchallList(t)},
		{"staff roles", http.MethodGet, "/v1/users/roles", nil, getToken(t, coachID), http.StatusOK, marchallObj(t, user.Roles)},
		{"player is not staff", http.MethodGet, "/v1/users/roles", nil, getToken(t, playerUID), http.StatusForbidden, nil},
	})
}

func TestMe(t *testing.T) {
	app := setup(t)

	tests := []struct {
		name       string
		userID     string
		wantAccess user.Access
	}{
		{"approved", playerUID, user.AccessGranted},
		{"pending", pendingID, user.AccessPending},
		{"rejected", rejectID, user.AccessRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/me", getToken(t, tt.userID))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp MeResponse
			require.NoError(t, decodeJSON(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantAccess, resp.Access)
			assert.Equal(t, tt.userID, resp.Profile.ID)
		})
	}

	t.Run("update needs approval", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"full_name": "Still Waiting"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/me", getToken(t, pendingID), body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestApproveBindsActor(t *testing.T) {
	app := setup(t)

	var actor string
	app.fakes.users.approve = func(ctx context.Context, targetID string, d user.Decision) (user.Profile, error) {
		actor = gateway.ActorFrom(ctx)
		return user.Profile{ID: targetID, ApprovalStatus: d.Decision}, nil
	}

	runHTTPTests(t, app, []httpTest{
		{"invalid decision", http.MethodPut, "/v1/users/" + pendingID + "/approval",
			marchallObj(t, map[string]string{"decision": "maybe"}), getToken(t, adminID), http.StatusBadRequest,
			marchallObj(t, map[string]string{"decision": "decision must be either approved or rejected"})},
		{"self approval", http.MethodPut, "/v1/users/" + adminID + "/approval",
			marchallObj(t, map[string]string{"decision": "approved"}), getToken(t, adminID), http.StatusForbidden, nil},
		{"approve", http.MethodPut, "/v1/users/" + pendingID + "/approval",
			marchallObj(t, map[string]string{"decision": "approved"}), getToken(t, adminID), http.StatusOK, nil},
	})
	assert.Equal(t, adminID, actor)
}

func TestGatewayErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantData []byte
	}{
		{"permission", &gateway.Error{Kind: gateway.KindPermission, Detail: "permission denied for table memberships"},
			http.StatusForbidden, marchallObj(t, httpErr{Error: "permission denied for table memberships"})},
		{"not found", &gateway.Error{Kind: gateway.KindNotFound, Detail: "function rpc_membership_summary does not exist"},
			http.StatusNotFound, nil},
		{"insufficient credits", &gateway.Error{Kind: gateway.KindValidation, Detail: "Insufficient credits"},
			http.StatusBadRequest, marchallObj(t, httpErr{Error: "Insufficient credits"})},
		{"network", &gateway.Error{Kind: gateway.KindNetwork, Detail: "connection refused"},
			http.StatusServiceUnavailable, marchallObj(t, httpErr{Error: "backend unavailable, please retry"})},
		{"unknown", &gateway.Error{Kind: gateway.KindUnknown, Detail: "boom"},
			http.StatusInternalServerError, marchallObj(t, httpErr{Error: "Internal Server Error"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setup(t)
			app.fakes.memberships.summary = func(context.Context, string) (membership.Summary, error) {
				return membership.Summary{}, tt.err
			}
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+playerUID+"/membership-summary", getToken(t, playerUID))
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}
}

func TestMembershipSummaryAccess(t *testing.T) {
	app := setup(t)
	path := "/v1/users/" + playerUID + "/membership-summary"

	runHTTPTests(t, app, []httpTest{
		{"self", http.MethodGet, path, nil, getToken(t, playerUID), http.StatusOK,
			marchallObj(t, membership.Summary{UserID: playerUID})},
		{"coach", http.MethodGet, path, nil, getToken(t, coachID), http.StatusOK, nil},
		{"another parent", http.MethodGet, path, nil, getToken(t, parentID), http.StatusForbidden, nil},
	})
}

func TestAssignMembership(t *testing.T) {
	app := setup(t)

	var got membership.AssignMembership
	app.fakes.memberships.assign = func(_ context.Context, am membership.AssignMembership) (membership.Membership, error) {
		got = am
		return membership.Membership{ID: eventID, UserID: am.UserID}, nil
	}

	valid := marchallObj(t, map[string]interface{}{
		"user_id":            playerUID,
		"membership_type_id": teamID,
		"start_date":         "2026-09-01",
		"end_date":           "2026-12-31",
	})
	backwards := marchallObj(t, map[string]interface{}{
		"user_id":            playerUID,
		"membership_type_id": teamID,
		"start_date":         "2026-09-01",
		"end_date":           "2026-08-01",
	})

	runHTTPTests(t, app, []httpTest{
		{"coach cannot assign", http.MethodPost, "/v1/memberships", valid, getToken(t, coachID), http.StatusForbidden, nil},
		{"end before start", http.MethodPost, "/v1/memberships", backwards, getToken(t, adminID), http.StatusBadRequest,
			marchallObj(t, map[string]string{"end_date": "end_date cannot be before start_date"})},
		{"bad date", http.MethodPost, "/v1/memberships",
			marchallObj(t, map[string]string{"user_id": playerUID, "membership_type_id": teamID, "start_date": "01/09/2026"}),
			getToken(t, adminID), http.StatusBadRequest,
			marchallObj(t, map[string]string{"start_date": "start_date must be a date formatted as YYYY-MM-DD"})},
		{"admin", http.MethodPost, "/v1/memberships", valid, getToken(t, adminID), http.StatusCreated, nil},
	})
	assert.Equal(t, playerUID, got.UserID)
	assert.Equal(t, "2026-12-31", got.EndDate)
}

func TestSweepDate(t *testing.T) {
	app := setup(t)

	var day time.Time
	app.fakes.memberships.sweep = func(_ context.Context, today time.Time) (membership.SweepResult, error) {
		day = today
		return membership.SweepResult{Deactivated: 2}, nil
	}

	runHTTPTests(t, app, []httpTest{
		{"bad date", http.MethodPost, "/v1/memberships/sweep?date=tomorrow", nil, getToken(t, adminID), http.StatusBadRequest, nil},
		{"sweep", http.MethodPost, "/v1/memberships/sweep?date=2026-10-01", nil, getToken(t, adminID), http.StatusOK,
			marchallObj(t, membership.SweepResult{Deactivated: 2})},
	})
	assert.Equal(t, "2026-10-01", day.Format("2006-01-02"))
}
