package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/chat"
	"github.com/hoopdesk/hoopdesk/core/feed"
	"github.com/hoopdesk/hoopdesk/core/user"
	"github.com/hoopdesk/hoopdesk/services/metrics"
)

const (
	liveWriteWait    = 10 * time.Second
	livePingInterval = 30 * time.Second
	liveScheduleDays = 30
)

// LiveFrame is what the live websocket sends: a full snapshot of the view, or an error.
type LiveFrame struct {
	Type     string      `json:"type"` // snapshot, error
	View     string      `json:"view"`
	Data     interface{} `json:"data,omitempty"`
	Error    interface{} `json:"error,omitempty"`
	Degraded bool        `json:"degraded,omitempty"` // no further updates will follow
}

type liveDeps struct {
	feed       feed.Subscriber
	logger     core.Logger
	metrics    *metrics.Metrics
	translator ut.Translator
	debounce   time.Duration
	origins    []string

	membership MembershipService
	attendance AttendanceService
	chat       ChatService
	team       TeamService
	health     HealthService
}

// liveView is a refetchable view and the tables it depends on.
type liveView struct {
	name   string
	topics []feed.Topic
	fetch  feed.Fetcher[interface{}]
}

type liveApi struct {
	liveDeps
	upgrader websocket.Upgrader
}

func registerLiveAPI(g *echo.Group, gate gate, deps liveDeps) {
	if deps.feed == nil {
		deps.feed = noFeed{}
	}
	api := &liveApi{liveDeps: deps}
	api.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     api.checkOrigin,
	}
	g.GET("", api.live, gate.require())
}

func (api *liveApi) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range api.origins {
		if allowed == "*" || allowed == origin || allowed == u.Scheme+"://"+u.Host {
			return true
		}
	}
	return false
}

func (api *liveApi) live(ctx echo.Context) error {
	view, err := api.resolve(ctx)
	if err != nil {
		return err
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader already answered
	}
	defer func() { _ = conn.Close() }()

	if api.metrics != nil {
		api.metrics.LiveClients.Inc()
		defer api.metrics.LiveClients.Dec()
	}

	runCtx, cancel := context.WithCancel(ctx.Request().Context())
	defer cancel()

	var wmu sync.Mutex
	write := func(f LiveFrame) {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteJSON(f); err != nil {
			cancel()
		}
	}

	// client frames are ignored; a failed read means the client left
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(livePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
				wmu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	refresher := feed.NewRefresher(api.feed, view.fetch, view.topics,
		feed.WithDebounce(api.debounce),
		feed.WithLogger(api.logger),
		feed.OnError(func(err error) {
			_, msg := resolveError(err, api.translator)
			write(LiveFrame{Type: "error", View: view.name, Error: msg})
		}),
	)
	_ = refresher.Run(runCtx, func(data interface{}) {
		write(LiveFrame{Type: "snapshot", View: view.name, Data: data, Degraded: refresher.Degraded()})
	})

	wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(liveWriteWait))
	wmu.Unlock()
	return nil
}

// resolve builds the view named by the `view` query param, checking its parameters and the caller's rights.
func (api *liveApi) resolve(ctx echo.Context) (liveView, error) {
	userID := contextUserID(ctx)
	name := ctx.QueryParam("view")

	switch name {
	case "schedules":
		teamID, err := uuidParam(ctx, "team_id")
		if err != nil {
			return liveView{}, err
		}
		return liveView{
			name:   name,
			topics: []feed.Topic{{Table: "schedules", Column: "team_id", Value: teamID}},
			fetch: func(c context.Context) (interface{}, error) {
				today := core.Today()
				return api.team.Schedules(c, teamID, today, today.AddDate(0, 0, liveScheduleDays))
			},
		}, nil

	case "attendance":
		if !isSelfOrAny(ctx, "", user.StaffRoles...) {
			return liveView{}, errHttpForbidden
		}
		eventID, err := uuidParam(ctx, "event_id")
		if err != nil {
			return liveView{}, err
		}
		return liveView{
			name:   name,
			topics: []feed.Topic{{Table: "attendance", Column: "event_id", Value: eventID}},
			fetch: func(c context.Context) (interface{}, error) {
				return api.attendance.ForEvent(c, eventID)
			},
		}, nil

	case "messages":
		chatID, err := uuidParam(ctx, "chat_id")
		if err != nil {
			return liveView{}, err
		}
		return liveView{
			name:   name,
			topics: []feed.Topic{{Table: "messages", Column: "chat_id", Value: chatID}},
			fetch: func(c context.Context) (interface{}, error) {
				return api.chat.Messages(c, userID, chatID, chat.MessageFilter{})
			},
		}, nil

	case "membership_summary":
		target := ctx.QueryParam("user_id")
		if target == "" {
			target = userID
		}
		if !isSelfOrAny(ctx, target, user.StaffRoles...) {
			return liveView{}, errHttpForbidden
		}
		return liveView{
			name:   name,
			topics: []feed.Topic{{Table: "memberships", Column: "user_id", Value: target}},
			fetch: func(c context.Context) (interface{}, error) {
				// the change may come from another instance; never serve the cached summary here
				api.membership.InvalidateSummary(target)
				return api.membership.Summary(c, target)
			},
		}, nil

	case "health_dashboard":
		if !isSelfOrAny(ctx, "", user.StaffRoles...) {
			return liveView{}, errHttpForbidden
		}
		return liveView{
			name:   name,
			topics: []feed.Topic{{Table: "daily_health_checkins"}},
			fetch: func(c context.Context) (interface{}, error) {
				return api.health.Dashboard(c)
			},
		}, nil
	}

	return liveView{}, core.NewValidationError(nil, core.FieldError{
		Field: "view",
		Error: "view must be one of schedules, attendance, messages, membership_summary, health_dashboard",
	})
}

func uuidParam(ctx echo.Context, name string) (string, error) {
	v := ctx.QueryParam(name)
	if _, err := uuid.Parse(v); err != nil {
		return "", core.NewValidationError(nil, core.FieldError{Field: name, Error: name + " must be a valid UUID"})
	}
	return v, nil
}

// noFeed stands in when no change feed runs: every live view degrades to a single fetch.
type noFeed struct{}

func (noFeed) Subscribe(feed.Topic) (*feed.Subscription, error) {
	return nil, feed.ErrHubClosed
}
