package grading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/gateway/gatewaytest"
	"github.com/hoopdesk/hoopdesk/core/retry"
)

const (
	eventID      = "5e7d8a10-0000-4000-8000-000000000e01"
	playerID     = "5e7d8a10-0000-4000-8000-0000000000a1"
	shooting     = "5e7d8a10-0000-4000-8000-0000000000f1"
	ballHandling = "5e7d8a10-0000-4000-8000-0000000000f2"
)

type memRepo struct {
	grades []Grade
}

func (r *memRepo) Metrics(context.Context) ([]Metric, error) { return nil, nil }

func (r *memRepo) ForEvent(context.Context, string) ([]Grade, error) { return r.grades, nil }

func (r *memRepo) ForPlayer(context.Context, string) ([]Grade, error) { return r.grades, nil }

func newService(gw gateway.Gateway, repo Repository) *Service {
	return NewService(gw, repo, core.NopLogger{}, retry.Options{BaseDelay: time.Millisecond})
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  float64
	}{
		{"none", nil, 0},
		{"two metrics", []Item{{Score: 8}, {Score: 6}}, 7},
		{"priority does not weigh", []Item{{Score: 8, Priority: 3}, {Score: 6, Priority: 1}}, 7},
		{"rounded", []Item{{Score: 7}, {Score: 8}, {Score: 8}}, 7.67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.items))
		})
	}
}

func TestProvisionalIsUnconfirmed(t *testing.T) {
	g := Provisional(eventID, playerID, []Item{{MetricID: shooting, Score: 8}})
	assert.False(t, g.Confirmed)
	assert.Equal(t, 8.0, g.Overall)
}

func TestService_SaveTakesServerOverall(t *testing.T) {
	gw := gatewaytest.New()
	gw.Handle(procSaveGrades, func(params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"id": "g1", "overall": 7.5}, nil
	})
	svc := newService(gw, new(memRepo))

	g, err := svc.Save(context.Background(), SaveGrades{
		EventID:  eventID,
		PlayerID: playerID,
		Items:    []Item{{MetricID: shooting, Score: 8, Priority: 1}, {MetricID: ballHandling, Score: 6, Priority: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, 7.5, g.Overall)
	assert.True(t, g.Confirmed)

	calls := gw.Calls(procSaveGrades)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Mutation)
	assert.Equal(t, eventID, calls[0].Params["p_event_id"])
	assert.Equal(t, playerID, calls[0].Params["p_player_id"])
}

func TestService_SaveFailureReturnsNothing(t *testing.T) {
	gw := gatewaytest.New()
	gw.Return(procSaveGrades, nil, &gateway.Error{Kind: gateway.KindPermission, Proc: procSaveGrades, Detail: "permission denied"})
	svc := newService(gw, new(memRepo))

	g, err := svc.Save(context.Background(), SaveGrades{
		EventID:  eventID,
		PlayerID: playerID,
		Items:    []Item{{MetricID: shooting, Score: 8}},
	})
	assert.Equal(t, gateway.KindPermission, gateway.KindOf(err))
	assert.Equal(t, Grade{}, g)
}

func TestService_SaveWithoutItems(t *testing.T) {
	gw := gatewaytest.New()
	svc := newService(gw, new(memRepo))

	_, err := svc.Save(context.Background(), SaveGrades{EventID: eventID, PlayerID: playerID})
	assert.True(t, core.IsValidationError(err))
	assert.Empty(t, gw.Calls(""))
}

func TestService_StoredGradesAreConfirmed(t *testing.T) {
	svc := newService(gatewaytest.New(), &memRepo{grades: []Grade{{ID: "g1", Overall: 7}, {ID: "g2", Overall: 5}}})

	grades, err := svc.ForEvent(context.Background(), eventID)
	require.NoError(t, err)
	for _, g := range grades {
		assert.True(t, g.Confirmed, g.ID)
	}
}

func TestItems_Scan(t *testing.T) {
	var it Items
	require.NoError(t, it.Scan([]byte(`[{"metric_id":"m1","score":8,"priority":1}]`)))
	assert.Equal(t, Items{{MetricID: "m1", Score: 8, Priority: 1}}, it)

	require.NoError(t, it.Scan(nil))
	assert.Nil(t, it)

	assert.Error(t, it.Scan(42))
}
