// Package notify routes user facing notices to the channels each user opted into.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/hoopdesk/hoopdesk/core"
)

// Topic is the category a notice belongs to; users may mute each one.
type Topic string

const (
	TopicMembership Topic = "membership"
	TopicHealth     Topic = "health"
	TopicAccount    Topic = "account"
)

type Preferences struct {
	UserID           string     `json:"user_id" db:"user_id"`
	EmailEnabled     bool       `json:"email_enabled" db:"email_enabled"`
	TelegramChatID   null.Int64 `json:"telegram_chat_id" db:"telegram_chat_id"`
	MembershipAlerts bool       `json:"membership_alerts" db:"membership_alerts"`
	HealthAlerts     bool       `json:"health_alerts" db:"health_alerts"`
}

// DefaultPreferences applies to users who never saved any.
func DefaultPreferences(userID string) Preferences {
	return Preferences{UserID: userID, EmailEnabled: true, MembershipAlerts: true, HealthAlerts: true}
}

// Wants reports whether the user accepts notices of topic.
func (p Preferences) Wants(topic Topic) bool {
	switch topic {
	case TopicMembership:
		return p.MembershipAlerts
	case TopicHealth:
		return p.HealthAlerts
	}
	return true
}

// Contact is where a user can be reached by email.
type Contact struct {
	Name  string `db:"full_name"`
	Email string `db:"email"`
}

type Notice struct {
	Topic        Topic
	Subject      string
	Text         string
	TemplateName string
	TemplateData interface{}
}

// Delivery pairs a notice with its recipient.
type Delivery struct {
	UserID string
	Notice Notice
}

type (
	Repository interface {
		// GetPreferences returns DefaultPreferences when the user has none stored.
		GetPreferences(ctx context.Context, userID string) (Preferences, error)
		SavePreferences(ctx context.Context, prefs Preferences) (Preferences, error)
		GetContact(ctx context.Context, userID string) (Contact, error)
	}

	// TelegramSender delivers a plain text message to a telegram chat.
	TelegramSender interface {
		Send(ctx context.Context, chatID int64, text string) error
	}
)

// UpdatePreferences is the payload a user sends to change their preferences.
type UpdatePreferences struct {
	EmailEnabled     *bool  `json:"email_enabled"`
	TelegramChatID   *int64 `json:"telegram_chat_id"`
	MembershipAlerts *bool  `json:"membership_alerts"`
	HealthAlerts     *bool  `json:"health_alerts"`
}

func (up UpdatePreferences) Apply(p Preferences) Preferences {
	if up.EmailEnabled != nil {
		p.EmailEnabled = *up.EmailEnabled
	}
	if up.TelegramChatID != nil {
		if *up.TelegramChatID == 0 {
			p.TelegramChatID = null.Int64{}
		} else {
			p.TelegramChatID = null.Int64From(*up.TelegramChatID)
		}
	}
	if up.MembershipAlerts != nil {
		p.MembershipAlerts = *up.MembershipAlerts
	}
	if up.HealthAlerts != nil {
		p.HealthAlerts = *up.HealthAlerts
	}
	return p
}

const parallelDeliveries = 4

type Dispatcher struct {
	repo     Repository
	mailSvc  core.EmailService
	telegram TelegramSender // optional
	logger   core.Logger
}

func NewDispatcher(repo Repository, mailSvc core.EmailService, telegram TelegramSender, logger core.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, mailSvc: mailSvc, telegram: telegram, logger: logger}
}

func (d *Dispatcher) Preferences(ctx context.Context, userID string) (Preferences, error) {
	return d.repo.GetPreferences(ctx, userID)
}

func (d *Dispatcher) UpdatePreferences(ctx context.Context, userID string, up UpdatePreferences) (Preferences, error) {
	prefs, err := d.repo.GetPreferences(ctx, userID)
	if err != nil {
		return Preferences{}, errors.Wrap(err, "loading preferences")
	}
	return d.repo.SavePreferences(ctx, up.Apply(prefs))
}

// Notify sends n to every channel userID enabled. Muted topics are skipped silently.
func (d *Dispatcher) Notify(ctx context.Context, userID string, n Notice) error {
	prefs, err := d.repo.GetPreferences(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "loading preferences")
	}
	if !prefs.Wants(n.Topic) {
		return nil
	}

	var result *multierror.Error
	if prefs.EmailEnabled && d.mailSvc != nil {
		if err := d.email(ctx, userID, n); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if prefs.TelegramChatID.Valid && d.telegram != nil {
		text := n.Text
		if text == "" {
			text = n.Subject
		}
		if err := d.telegram.Send(ctx, prefs.TelegramChatID.Int64, text); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "sending telegram message"))
		}
	}
	return result.ErrorOrNil()
}

// NotifyAll delivers concurrently; one failed delivery does not stop the others.
func (d *Dispatcher) NotifyAll(ctx context.Context, deliveries []Delivery) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelDeliveries)
	for _, dl := range deliveries {
		dl := dl
		g.Go(func() error {
			if err := d.Notify(gctx, dl.UserID, dl.Notice); err != nil {
				d.logger.Error(fmt.Sprintf("notifying %s: %v", dl.UserID, err), err)
				mu.Lock()
				result = multierror.Append(result, errors.Wrapf(err, "notifying %s", dl.UserID))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result.ErrorOrNil()
}

func (d *Dispatcher) email(ctx context.Context, userID string, n Notice) error {
	contact, err := d.repo.GetContact(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "loading contact")
	}
	if strings.TrimSpace(contact.Email) == "" {
		return nil
	}
	d.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: contact.Name, Address: contact.Email}},
		Subject:      n.Subject,
		BodyStr:      n.Text,
		TemplateName: n.TemplateName,
		TemplateData: n.TemplateData,
	})
	return nil
}
