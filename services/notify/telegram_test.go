package notifysvc

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type botStub struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *botStub) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, b.err
}

func TestTelegramSender_Send(t *testing.T) {
	bot := new(botStub)
	s := newTelegramSender(bot, "Hoopdesk")

	require.NoError(t, s.Send(context.Background(), 42, "2 classes left"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, "[Hoopdesk] 2 classes left", bot.sent[0].Text)

	bot.err = errors.New("chat not found")
	assert.EqualError(t, s.Send(context.Background(), 7, "x"), "sending telegram message to 7: chat not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, s.Send(ctx, 42, "x"))
	assert.Len(t, bot.sent, 2)
}
