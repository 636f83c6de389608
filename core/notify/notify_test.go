package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

type memRepo struct {
	mu       sync.Mutex
	prefs    map[string]Preferences
	contacts map[string]Contact
}

func (r *memRepo) GetPreferences(_ context.Context, userID string) (Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.prefs[userID]; ok {
		return p, nil
	}
	return DefaultPreferences(userID), nil
}

func (r *memRepo) SavePreferences(_ context.Context, p Preferences) (Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[p.UserID] = p
	return p, nil
}

func (r *memRepo) GetContact(_ context.Context, userID string) (Contact, error) {
	c, ok := r.contacts[userID]
	if !ok {
		return Contact{}, core.ErrNotFound
	}
	return c, nil
}

type mailSpy struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailSpy) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

type telegramMock struct {
	mock.Mock
}

func (m *telegramMock) Send(ctx context.Context, chatID int64, text string) error {
	return m.Called(chatID, text).Error(0)
}

func newRepo() *memRepo {
	return &memRepo{
		prefs: map[string]Preferences{
			"muted":    {UserID: "muted", EmailEnabled: true, MembershipAlerts: false, HealthAlerts: true},
			"telegram": {UserID: "telegram", EmailEnabled: false, TelegramChatID: null.Int64From(42), MembershipAlerts: true},
		},
		contacts: map[string]Contact{
			"default":  {Name: "Ana", Email: "ana@example.com"},
			"muted":    {Name: "Ben", Email: "ben@example.com"},
			"telegram": {Name: "Cy", Email: "cy@example.com"},
		},
	}
}

func TestDispatcher_Notify(t *testing.T) {
	notice := Notice{Topic: TopicMembership, Subject: "Low credits", Text: "2 classes left"}

	tests := []struct {
		name          string
		userID        string
		wantEmails    int
		wantTelegrams int
	}{
		{name: "defaults to email", userID: "default", wantEmails: 1},
		{name: "muted topic", userID: "muted"},
		{name: "telegram only", userID: "telegram", wantTelegrams: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := new(mailSpy)
			tg := new(telegramMock)
			tg.On("Send", int64(42), "2 classes left").Return(nil)

			d := NewDispatcher(newRepo(), spy, tg, core.NopLogger{})
			require.NoError(t, d.Notify(context.Background(), tt.userID, notice))

			assert.Len(t, spy.sent, tt.wantEmails)
			tg.AssertNumberOfCalls(t, "Send", tt.wantTelegrams)
		})
	}
}

func TestDispatcher_NotifyAllCollectsErrors(t *testing.T) {
	spy := new(mailSpy)
	tg := new(telegramMock)
	tg.On("Send", int64(42), mock.Anything).Return(errors.New("chat not found"))

	d := NewDispatcher(newRepo(), spy, tg, core.NopLogger{})
	err := d.NotifyAll(context.Background(), []Delivery{
		{UserID: "default", Notice: Notice{Topic: TopicMembership, Subject: "a"}},
		{UserID: "telegram", Notice: Notice{Topic: TopicMembership, Subject: "b"}},
		{UserID: "unknown", Notice: Notice{Topic: TopicAccount, Subject: "c"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Contains(t, err.Error(), "notifying unknown")
	assert.Len(t, spy.sent, 1, "successful deliveries still go out")
}

func TestDispatcher_UpdatePreferences(t *testing.T) {
	repo := newRepo()
	d := NewDispatcher(repo, nil, nil, core.NopLogger{})

	off := false
	chat := int64(7)
	prefs, err := d.UpdatePreferences(context.Background(), "default", UpdatePreferences{HealthAlerts: &off, TelegramChatID: &chat})
	require.NoError(t, err)
	assert.True(t, prefs.EmailEnabled)
	assert.False(t, prefs.HealthAlerts)
	assert.Equal(t, null.Int64From(7), prefs.TelegramChatID)

	zero := int64(0)
	prefs, err = d.UpdatePreferences(context.Background(), "default", UpdatePreferences{TelegramChatID: &zero})
	require.NoError(t, err)
	assert.False(t, prefs.TelegramChatID.Valid)
}
