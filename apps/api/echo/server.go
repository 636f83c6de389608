package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/feed"
	"github.com/hoopdesk/hoopdesk/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Metrics    *metrics.Metrics
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       UserService
		MembershipSvc MembershipService
		AttendanceSvc AttendanceService
		GradingSvc    GradingService
		ChatSvc       ChatService
		TeamSvc       TeamService
		HealthSvc     HealthService
		TelemetrySvc  TelemetryService
		VideoSvc      VideoService
		NotifySvc     NotificationService

		// Feed backs the live views; without it they serve a single fetch.
		Feed feed.Subscriber
	}

	Server struct {
		app      *echo.Echo
		addr     string
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		addr:     deps.Conf.Server.Addr,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf
	app := s.app

	app.HideBanner = true
	app.Debug = conf.Debug
	app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.SignalShutdown)

	app.Pre(middleware.RemoveTrailingSlash())
	app.Use(echo.WrapMiddleware(cors.New(cors.Options{
		AllowedOrigins:   conf.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Client-Info"},
		AllowCredentials: true,
	}).Handler))
	if deps.Metrics != nil {
		app.Use(metricsMiddleware(deps.Metrics))
	}
	if !conf.TestMode {
		app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	app.GET("/", home)
	app.GET("/health", healthz)

	v1 := app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf.Auth, "header:"+echo.HeaderAuthorization))
	auth := authenticated(conf.Auth.JWTAudience)
	authed := v1.Group("", jwt, auth)

	gate := newGate(deps.UserSvc)
	v := deps.Validate

	registerUserAPI(authed, gate, deps.UserSvc, v)
	registerNotificationAPI(authed, gate, deps.NotifySvc, v)
	registerMembershipAPI(authed, gate, deps.MembershipSvc, v)
	registerAttendanceAPI(authed, gate, deps.AttendanceSvc, deps.TeamSvc, v)
	registerGradingAPI(authed, gate, deps.GradingSvc, deps.TeamSvc, v)
	registerChatAPI(authed, gate, deps.ChatSvc, v)
	registerTeamAPI(authed, gate, deps.TeamSvc, v)
	registerHealthAPI(authed, gate, deps.HealthSvc, deps.TeamSvc, v)
	registerTelemetryAPI(v1, authed, gate, deps.TelemetrySvc, v)
	registerVideoAPI(authed, gate, deps.VideoSvc, v)

	// browsers cannot set headers on websocket upgrades
	liveJWT := middleware.JWTWithConfig(jwtConfig(conf.Auth, "query:token"))
	registerLiveAPI(v1.Group("/live", liveJWT, auth), gate, liveDeps{
		feed:       deps.Feed,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		translator: deps.Translator,
		debounce:   conf.Feed.Debounce,
		origins:    conf.Server.AllowedOrigins,
		membership: deps.MembershipSvc,
		attendance: deps.AttendanceSvc,
		chat:       deps.ChatSvc,
		team:       deps.TeamSvc,
		health:     deps.HealthSvc,
	})
}

// Start blocks serving requests; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the owner of the server to shut it down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Hoopdesk API!")
}

func healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "time": time.Now().UTC()})
}
