package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/cache"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/gateway/gatewaytest"
	"github.com/hoopdesk/hoopdesk/core/notify"
)

const (
	userID   = "4f3c2d1e-0000-4000-8000-000000000001"
	typeID   = "4f3c2d1e-0000-4000-8000-0000000000aa"
	playerID = "4f3c2d1e-0000-4000-8000-0000000000p1"
)

type memRepo struct {
	players map[string]string
	types   []Type
	typeQs  int
}

func (r *memRepo) PlayerUserID(_ context.Context, id string) (string, error) {
	uid, ok := r.players[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return uid, nil
}

func (r *memRepo) QueryTypes(context.Context) ([]Type, error) {
	r.typeQs++
	return r.types, nil
}

func (r *memRepo) ForUser(context.Context, string) ([]Membership, error) { return nil, nil }

type notifierSpy struct {
	deliveries []notify.Delivery
}

func (n *notifierSpy) NotifyAll(_ context.Context, d []notify.Delivery) error {
	n.deliveries = append(n.deliveries, d...)
	return nil
}

func setup(t *testing.T) (*Service, *gatewaytest.Fake, *memRepo, *notifierSpy) {
	t.Helper()
	gw := gatewaytest.New()
	repo := &memRepo{
		players: map[string]string{playerID: userID, "unlinked": ""},
		types:   []Type{{ID: typeID, Name: "10 classes", AllocationType: AllocClassCount, ClassCount: null.IntFrom(10), IsActive: true}},
	}
	spy := new(notifierSpy)
	svc := NewService(gw, repo, cache.New[Summary](), cache.New[[]Type](), spy, core.NopLogger{}, 0)
	return svc, gw, repo, spy
}

func TestMembership_Remaining(t *testing.T) {
	intp := func(i int) *int { return &i }
	tests := []struct {
		name string
		m    Membership
		want *int
	}{
		{name: "fresh", m: Membership{AllocationType: AllocClassCount, Allocated: null.IntFrom(10), Used: 0}, want: intp(10)},
		{name: "partly used", m: Membership{AllocationType: AllocClassCount, Allocated: null.IntFrom(10), Used: 7}, want: intp(3)},
		{name: "exhausted", m: Membership{AllocationType: AllocClassCount, Allocated: null.IntFrom(10), Used: 10}, want: intp(0)},
		{name: "overdrawn clamps to zero", m: Membership{AllocationType: AllocClassCount, Allocated: null.IntFrom(10), Used: 12}, want: intp(0)},
		{name: "unlimited", m: Membership{AllocationType: AllocUnlimited, Used: 40}, want: nil},
		{name: "date range without count", m: Membership{AllocationType: AllocDateRange}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.Remaining())
		})
	}
}

func TestService_AssignInvalidatesSummary(t *testing.T) {
	svc, gw, _, _ := setup(t)
	gw.Return(procSummary, Summary{Memberships: []Membership{
		{IsActive: true, AllocationType: AllocClassCount, Allocated: null.IntFrom(10), Used: 8},
	}}, nil)
	gw.Return(procAssign, Membership{ID: "m2", UserID: userID, AllocationType: AllocClassCount, Allocated: null.IntFrom(10)}, nil)

	ctx := context.Background()
	s, err := svc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalRemaining)
	_, _ = svc.Summary(ctx, userID)
	assert.Len(t, gw.Calls(procSummary), 1)

	m, err := svc.Assign(ctx, AssignMembership{UserID: userID, MembershipTypeID: typeID, StartDate: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "m2", m.ID)

	calls := gw.Calls(procAssign)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Mutation)
	assert.Equal(t, userID, calls[0].Params["p_user_id"])
	assert.Equal(t, "2024-03-01", calls[0].Params["p_start_date"].(core.Date).String())
	assert.False(t, calls[0].Params["p_end_date"].(core.Date).Valid())
	assert.Equal(t, true, calls[0].Params["p_auto_deactivate"])
	assert.Nil(t, calls[0].Params["p_notes"])

	_, err = svc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, gw.Calls(procSummary), 2, "assignment drops the cached summary")
}

func TestService_AssignForPlayer(t *testing.T) {
	svc, gw, _, _ := setup(t)
	gw.Return(procAssign, Membership{ID: "m1"}, nil)

	_, err := svc.AssignForPlayer(context.Background(), playerID, AssignMembership{MembershipTypeID: typeID, StartDate: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, userID, gw.Calls(procAssign)[0].Params["p_user_id"])

	_, err = svc.AssignForPlayer(context.Background(), "unlinked", AssignMembership{MembershipTypeID: typeID, StartDate: "2024-03-01"})
	assert.True(t, core.IsValidationError(err))
	assert.Len(t, gw.Calls(procAssign), 1)
}

func TestService_AssignSurfacesBackendValidation(t *testing.T) {
	svc, gw, _, _ := setup(t)
	gw.Return(procAssign, nil, &gateway.Error{Kind: gateway.KindValidation, Proc: procAssign, Detail: "Membership type is inactive"})

	_, err := svc.Assign(context.Background(), AssignMembership{UserID: userID, MembershipTypeID: typeID, StartDate: "2024-03-01"})
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
}

func TestSummary_Recompute(t *testing.T) {
	s := Summary{Memberships: []Membership{
		{IsActive: true, AllocationType: AllocClassCount, Allocated: null.IntFrom(10), Used: 4},
		{IsActive: true, AllocationType: AllocClassCount, Allocated: null.IntFrom(5), Used: 9},
		{IsActive: false, AllocationType: AllocClassCount, Allocated: null.IntFrom(20)},
		{IsActive: true, AllocationType: AllocUnlimited},
	}, TotalRemaining: 999}
	s.recompute()
	assert.True(t, s.HasActive)
	assert.True(t, s.HasUnlimited)
	assert.Equal(t, 6, s.TotalRemaining)
}

func TestService_TypesCached(t *testing.T) {
	svc, _, repo, _ := setup(t)
	for i := 0; i < 2; i++ {
		types, err := svc.Types(context.Background())
		require.NoError(t, err)
		assert.Len(t, types, 1)
	}
	assert.Equal(t, 1, repo.typeQs)
}

func TestService_Sweep(t *testing.T) {
	svc, gw, _, spy := setup(t)
	gw.Return(procMaintenance, SweepResult{
		Deactivated: 3,
		LowCredit: []LowCredit{
			{MembershipID: "m1", UserID: "u1", FullName: "Ana", TypeName: "10 classes", Remaining: 2},
			{MembershipID: "m2", UserID: "u2", FullName: "Ben", TypeName: "5 classes", Remaining: 0},
		},
	}, nil)

	res, err := svc.Sweep(context.Background(), time.Date(2024, 4, 1, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deactivated)

	call := gw.Calls(procMaintenance)[0]
	assert.Equal(t, "2024-04-01", call.Params["p_today"].(core.Date).String())
	assert.Equal(t, DefaultLowCreditThreshold, call.Params["p_low_credit_threshold"])

	require.Len(t, spy.deliveries, 2)
	assert.Equal(t, "u1", spy.deliveries[0].UserID)
	assert.Equal(t, notify.TopicMembership, spy.deliveries[0].Notice.Topic)
	assert.Equal(t, "Your 10 classes membership has 2 class(es) left.", spy.deliveries[0].Notice.Text)
}
