package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/feed"
)

const listenerPingInterval = 90 * time.Second

// WatchedTables carry the app_notify_change trigger.
var WatchedTables = []string{
	"profiles", "user_roles", "teams", "schedules", "memberships",
	"attendance", "player_grades", "chats", "messages", "daily_health_checkins",
}

// Listener is a feed.Source reading row changes sent with pg_notify by the
// app_notify_change trigger.
type Listener struct {
	dsn     string
	conf    core.FeedConfig
	logger  core.Logger
	onEvent func(feed.Event)
}

var _ feed.Source = (*Listener)(nil)

type ListenerOption func(*Listener)

// OnEvent is called for every decoded event before it is handed to the hub.
func OnEvent(fn func(feed.Event)) ListenerOption {
	return func(l *Listener) { l.onEvent = fn }
}

func NewListener(conf *core.Config, logger core.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{
		dsn:    URL(conf.Database.Name, false, conf),
		conf:   conf.Feed,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Listener) Listen(ctx context.Context, out chan<- feed.Event) error {
	pl := pq.NewListener(l.dsn, l.conf.MinReconnect, l.conf.MaxReconnect, l.report)
	defer func() { _ = pl.Close() }()

	if err := pl.Listen(l.conf.Channel); err != nil {
		return errors.Wrapf(err, "listening on %s", l.conf.Channel)
	}

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-pl.Notify:
			var events []feed.Event
			if n == nil { // reconnected; notifications may have been missed
				events = refreshEvents(WatchedTables)
			} else {
				ev, err := decodeNotification(n.Extra)
				if err != nil {
					l.logger.Warn(fmt.Sprintf("dropping change notification: %v", err))
					continue
				}
				events = []feed.Event{ev}
			}
			for _, ev := range events {
				if l.onEvent != nil {
					l.onEvent(ev)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return nil
				}
			}
		case <-ticker.C:
			if err := pl.Ping(); err != nil {
				l.logger.Warn(fmt.Sprintf("change feed ping: %v", err))
			}
		}
	}
}

func (l *Listener) report(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		l.logger.Warn(fmt.Sprintf("change feed disconnected: %v", err))
	case pq.ListenerEventReconnected:
		l.logger.Info("change feed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn(fmt.Sprintf("change feed connection attempt failed: %v", err))
	}
}

func refreshEvents(tables []string) []feed.Event {
	events := make([]feed.Event, len(tables))
	for i, t := range tables {
		events[i] = feed.Event{Table: t, Op: feed.OpRefresh}
	}
	return events
}

func decodeNotification(payload string) (feed.Event, error) {
	var ev feed.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return feed.Event{}, errors.Wrap(err, "decoding payload")
	}
	if ev.Table == "" || ev.Op == "" {
		return feed.Event{}, errors.Errorf("incomplete payload %q", payload)
	}
	return ev, nil
}
