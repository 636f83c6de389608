package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway/gatewaytest"
	"github.com/hoopdesk/hoopdesk/core/notify"
)

const playerID = "9c0d3e6a-0000-4000-8000-0000000000a1"

type memRepo struct {
	mu       sync.Mutex
	checkins map[string]Checkin
}

func (r *memRepo) Upsert(_ context.Context, c *Checkin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := c.PlayerID + "/" + c.CheckinDate.String()
	if prev, ok := r.checkins[key]; ok {
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
	}
	r.checkins[key] = *c
	return nil
}

func (r *memRepo) ForPlayer(context.Context, string, time.Time, time.Time) ([]Checkin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Checkin, 0, len(r.checkins))
	for _, c := range r.checkins {
		out = append(out, c)
	}
	return out, nil
}

func (r *memRepo) PlayerName(context.Context, string) (string, error) { return "Jordan", nil }

func (r *memRepo) StaffOf(context.Context, string) ([]string, error) { return []string{"coach-1"}, nil }

type dispatcherMock struct {
	mock.Mock
}

func (m *dispatcherMock) Dispatch(ctx context.Context, name string, payload interface{}) error {
	return m.Called(name, payload).Error(0)
}

type notifierSpy struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
}

func (n *notifierSpy) NotifyAll(_ context.Context, d []notify.Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d...)
	return nil
}

func setup(t *testing.T) (*Service, *memRepo, *dispatcherMock, *notifierSpy) {
	now := time.Date(2024, 4, 9, 8, 30, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })

	repo := &memRepo{checkins: make(map[string]Checkin)}
	fns := new(dispatcherMock)
	spy := new(notifierSpy)
	svc := NewService(gatewaytest.New(), repo, fns, spy, core.NopLogger{}, Thresholds{})
	return svc, repo, fns, spy
}

func TestThresholds_Reasons(t *testing.T) {
	tests := []struct {
		name string
		c    Checkin
		want []string
	}{
		{"fine", Checkin{Energy: 6, Soreness: 3}, nil},
		{"injury", Checkin{Energy: 6, Soreness: 3, Injury: true}, []string{"injury reported"}},
		{"soreness at threshold", Checkin{Energy: 6, Soreness: 8}, []string{"high soreness"}},
		{"soreness below threshold", Checkin{Energy: 6, Soreness: 7}, nil},
		{"energy at threshold", Checkin{Energy: 2, Soreness: 3}, []string{"low energy"}},
		{"energy above threshold", Checkin{Energy: 3, Soreness: 3}, nil},
		{"everything", Checkin{Energy: 1, Soreness: 10, Injury: true}, []string{"injury reported", "high soreness", "low energy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultThresholds.Reasons(tt.c))
		})
	}
}

func TestService_SubmitWithoutAlert(t *testing.T) {
	svc, _, fns, spy := setup(t)

	c, err := svc.Submit(context.Background(), SubmitCheckin{PlayerID: playerID, Energy: 7, Soreness: 2})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, "2024-04-09", c.CheckinDate.String())
	fns.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	assert.Empty(t, spy.deliveries)
}

func TestService_SubmitRaisesAlert(t *testing.T) {
	svc, _, fns, spy := setup(t)
	fns.On("Dispatch", core.FnHealthAlertEmail, mock.AnythingOfType("health.Alert")).Return(nil)

	_, err := svc.Submit(context.Background(), SubmitCheckin{
		PlayerID:    playerID,
		Energy:      5,
		Soreness:    9,
		Injury:      true,
		InjuryNotes: "ankle",
	})
	require.NoError(t, err)
	svc.Wait()

	fns.AssertNumberOfCalls(t, "Dispatch", 1)
	alert := fns.Calls[0].Arguments.Get(1).(Alert)
	assert.Equal(t, "Jordan", alert.PlayerName)
	assert.Equal(t, []string{"injury reported", "high soreness"}, alert.Reasons)
	assert.Equal(t, "ankle", alert.Notes)

	require.Len(t, spy.deliveries, 1)
	assert.Equal(t, "coach-1", spy.deliveries[0].UserID)
	assert.Equal(t, notify.TopicHealth, spy.deliveries[0].Notice.Topic)
}

func TestService_AlertFailureDoesNotFailSubmit(t *testing.T) {
	svc, _, fns, _ := setup(t)
	fns.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("queue down"))

	_, err := svc.Submit(context.Background(), SubmitCheckin{PlayerID: playerID, Energy: 1, Soreness: 1})
	svc.Wait()
	assert.NoError(t, err)
	fns.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestService_SubmitIsOnePerDay(t *testing.T) {
	svc, repo, _, _ := setup(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, SubmitCheckin{PlayerID: playerID, Energy: 6, Soreness: 4})
	require.NoError(t, err)
	second, err := svc.Submit(ctx, SubmitCheckin{PlayerID: playerID, Energy: 7, Soreness: 3})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.checkins, 1)

	_, err = svc.Submit(ctx, SubmitCheckin{PlayerID: playerID, Date: "yesterday", Energy: 6, Soreness: 4})
	assert.True(t, core.IsValidationError(err))
}

func TestService_Dashboard(t *testing.T) {
	gw := gatewaytest.New()
	gw.Return(procDashboard, map[string]interface{}{
		"date":             "2024-04-09",
		"submitted":        9,
		"expected_players": 12,
		"average_energy":   6.5,
		"active_injuries":  1,
		"flagged":          []map[string]interface{}{{"player_id": playerID, "player_name": "Jordan", "soreness_level": 9}},
	}, nil)
	svc := NewService(gw, &memRepo{}, new(dispatcherMock), nil, core.NopLogger{}, DefaultThresholds)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, d.Submitted)
	assert.Equal(t, 6.5, d.AverageEnergy.Float64)
	assert.False(t, d.AverageSoreness.Valid)
	require.Len(t, d.FlaggedCheckins, 1)
	assert.Equal(t, 9, d.FlaggedCheckins[0].Soreness)
	assert.Empty(t, gw.Calls(procDashboard)[0].Params)
}
