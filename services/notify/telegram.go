package notifysvc

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/notify"
)

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	api    botAPI
	prefix string
}

var _ notify.TelegramSender = (*TelegramSender)(nil)

func NewTelegramSender(conf *core.Config, logger core.Logger) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(conf.Telegram.Token)
	if err != nil {
		return nil, errors.Wrap(err, "creating telegram bot")
	}
	logger.Info(fmt.Sprintf("telegram: authorized as %s", api.Self.UserName))
	return newTelegramSender(api, conf.AppName), nil
}

func newTelegramSender(api botAPI, appName string) *TelegramSender {
	return &TelegramSender{api: api, prefix: "[" + appName + "] "}
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, s.prefix+text)
	msg.DisableWebPagePreview = true
	_, err := s.api.Send(msg)
	return errors.Wrapf(err, "sending telegram message to %d", chatID)
}
