package dig_container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/facebookgo/clock"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/hoopdesk/hoopdesk/apps/api/echo"
	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/attendance"
	"github.com/hoopdesk/hoopdesk/core/cache"
	"github.com/hoopdesk/hoopdesk/core/chat"
	"github.com/hoopdesk/hoopdesk/core/feed"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/grading"
	"github.com/hoopdesk/hoopdesk/core/health"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/notify"
	"github.com/hoopdesk/hoopdesk/core/retry"
	"github.com/hoopdesk/hoopdesk/core/team"
	"github.com/hoopdesk/hoopdesk/core/telemetry"
	"github.com/hoopdesk/hoopdesk/core/user"
	"github.com/hoopdesk/hoopdesk/core/video"
	emailsvc "github.com/hoopdesk/hoopdesk/services/email"
	"github.com/hoopdesk/hoopdesk/services/functions"
	logsvc "github.com/hoopdesk/hoopdesk/services/logger"
	"github.com/hoopdesk/hoopdesk/services/metrics"
	notifysvc "github.com/hoopdesk/hoopdesk/services/notify"
	telemetrysvc "github.com/hoopdesk/hoopdesk/services/telemetry"
	"github.com/hoopdesk/hoopdesk/storage/database"
	pgrepos "github.com/hoopdesk/hoopdesk/storage/database/postgres"
)

const setUpTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) (core.Logger, error) {
	return newRollbarLogger(conf, "api")
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	return newRollbarLogger(conf, "db")
}

func newRollbarLogger(conf *core.Config, service string) (core.Logger, error) {
	zl, err := logsvc.NewZap(conf.Log, service)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger, nil
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newRetryOptions(conf *core.Config, logger core.Logger) retry.Options {
	return retry.Options{
		MaxRetries:  conf.Retry.MaxRetries,
		BaseDelay:   conf.Retry.BaseDelay,
		Multiplier:  conf.Retry.Multiplier,
		ShouldRetry: gateway.IsRetryable,
		OnRetry: func(attempt, max int, err error) {
			logger.Warn(fmt.Sprintf("backend call failed, retry %d/%d: %v", attempt, max, err))
		},
	}
}

type GatewayParam struct {
	dig.In
	Conf     *core.Config
	DB       core.DBExecutor
	Retry    retry.Options
	Metrics  *metrics.Metrics
	DBLogger core.Logger `name:"dbLogger"`
}

func newGateway(p GatewayParam) gateway.Gateway {
	requests := cache.New[[]byte](
		cache.WithTTL(p.Conf.Cache.RequestTTL),
		cache.WithCapacity(p.Conf.Cache.RequestMaxSize),
	)
	return gateway.NewPostgres(p.DB,
		gateway.WithRetry(p.Retry),
		gateway.WithRequestCache(requests),
		gateway.WithCallCounter(p.Metrics.RPCCalls),
		gateway.WithLogger(p.DBLogger),
	)
}

// caches

func newAuthCache(conf *core.Config) *cache.Cache[user.AuthData] {
	return cache.New[user.AuthData](cache.WithTTL(conf.Cache.RoleTTL))
}

func newTeamsCache(conf *core.Config) *cache.Cache[[]team.Team] {
	return cache.New[[]team.Team](cache.WithTTL(conf.Cache.TeamsTTL))
}

func newTypesCache(conf *core.Config) *cache.Cache[[]membership.Type] {
	return cache.New[[]membership.Type](cache.WithTTL(conf.Cache.TypesTTL))
}

func newSummaryCache() *cache.Cache[membership.Summary] {
	return cache.New[membership.Summary]()
}

// outbound services

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newTelegramSender returns a nil sender when no bot token is configured; telegram delivery is then skipped.
func newTelegramSender(conf *core.Config, logger core.Logger) (notify.TelegramSender, error) {
	if conf.Telegram.Token == "" {
		return nil, nil
	}
	return notifysvc.NewTelegramSender(conf, logger)
}

func newFunctionInvoker(conf *core.Config) core.FunctionInvoker {
	return functions.NewHTTPInvoker(conf.Backend)
}

// Jobs holds the background parts of function dispatching the app must run and drain.
type Jobs struct {
	Dispatcher core.FunctionDispatcher
	Worker     *functions.Worker          // nil unless jobs go through rabbitmq
	Async      *functions.AsyncDispatcher // nil when jobs go through rabbitmq
	Close      func()
}

func newJobs(conf *core.Config, invoker core.FunctionInvoker, logger core.Logger) (*Jobs, error) {
	if conf.RabbitMQ.URL == "" {
		async := functions.NewAsyncDispatcher(invoker, conf.Backend.Timeout, logger)
		return &Jobs{Dispatcher: async, Async: async, Close: func() {}}, nil
	}

	conn, ch, err := functions.Dial(conf.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}
	return &Jobs{
		Dispatcher: functions.NewQueueDispatcher(ch),
		Worker:     functions.NewWorker(ch, invoker, conf.Backend.Timeout, logger),
		Close: func() {
			_ = ch.Close()
			_ = conn.Close()
		},
	}, nil
}

func newFunctionDispatcher(jobs *Jobs) core.FunctionDispatcher {
	return jobs.Dispatcher
}

// TelemetrySink is the configured sink and how to release it.
type TelemetrySink struct {
	telemetry.Sink
	Close func() error
}

func newTelemetrySink(conf *core.Config, dispatcher core.FunctionDispatcher) *TelemetrySink {
	if conf.Kafka.Broker == "" {
		return &TelemetrySink{Sink: telemetrysvc.NewFunctionSink(dispatcher), Close: func() error { return nil }}
	}
	sink := telemetrysvc.NewKafkaSink(conf.Kafka)
	return &TelemetrySink{Sink: sink, Close: sink.Close}
}

func newNotifyDispatcher(repo notify.Repository, mailSvc core.EmailService, telegram notify.TelegramSender, logger core.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(repo, mailSvc, telegram, logger)
}

// domain services

func newMembershipService(
	conf *core.Config,
	gw gateway.Gateway,
	repo membership.Repository,
	summaries *cache.Cache[membership.Summary],
	types *cache.Cache[[]membership.Type],
	notifier *notify.Dispatcher,
	logger core.Logger,
) *membership.Service {
	return membership.NewService(gw, repo, summaries, types, notifier, logger, conf.Alerts.LowCreditThreshold)
}

func newAttendanceService(gw gateway.Gateway, repo attendance.Repository, memberships *membership.Service, readOptions retry.Options) *attendance.Service {
	return attendance.NewService(gw, repo, memberships, readOptions)
}

func newHealthService(
	conf *core.Config,
	gw gateway.Gateway,
	repo health.Repository,
	dispatcher core.FunctionDispatcher,
	notifier *notify.Dispatcher,
	logger core.Logger,
) *health.Service {
	thresholds := health.Thresholds{Soreness: conf.Alerts.SorenessThreshold, Energy: conf.Alerts.EnergyThreshold}
	return health.NewService(gw, repo, dispatcher, notifier, logger, thresholds)
}

func newChatService(repo chat.Repository) *chat.Service {
	return chat.NewService(repo, clock.New())
}

func newTelemetryService(conf *core.Config, repo telemetry.Repository, sink *TelemetrySink, dispatcher core.FunctionDispatcher, logger core.Logger) *telemetry.Service {
	return telemetry.NewService(repo, sink, dispatcher, logger,
		telemetry.WithRelease(conf.Build),
		telemetry.WithRateLimit(conf.Telemetry.ReportsPerSecond, conf.Telemetry.ReportBurst),
		telemetry.WithCriticalRateLimit(conf.Telemetry.CriticalPerMinute, conf.Telemetry.CriticalBurst),
	)
}

// change feed

// Feed is the change hub and the listener feeding it.
type Feed struct {
	Hub      *feed.Hub
	Listener *database.Listener
}

func newFeed(conf *core.Config, m *metrics.Metrics, loggerParam DBLoggerParam) *Feed {
	listener := database.NewListener(conf, loggerParam.Logger, database.OnEvent(func(ev feed.Event) {
		m.FeedEvents.WithLabelValues(ev.Table, string(ev.Op)).Inc()
	}))
	return &Feed{Hub: feed.NewHub(listener), Listener: listener}
}

// api

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Metrics    *metrics.Metrics
	Validate   *validator.Validate
	Translator ut.Translator
	Users      *user.Service
	Membership *membership.Service
	Attendance *attendance.Service
	Grading    *grading.Service
	Chat       *chat.Service
	Team       *team.Service
	Health     *health.Service
	Telemetry  *telemetry.Service
	Video      *video.Service
	Notify     *notify.Dispatcher
	Feed       *Feed
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Metrics:       p.Metrics,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.Users,
		MembershipSvc: p.Membership,
		AttendanceSvc: p.Attendance,
		GradingSvc:    p.Grading,
		ChatSvc:       p.Chat,
		TeamSvc:       p.Team,
		HealthSvc:     p.Health,
		TelemetrySvc:  p.Telemetry,
		VideoSvc:      p.Video,
		NotifySvc:     p.Notify,
		Feed:          p.Feed.Hub,
	})
}

func newDebugServer(conf *core.Config, m *metrics.Metrics, db *sqlx.DB) *metrics.DebugServer {
	return metrics.NewDebugServer(conf.Server.DebugHost, m, db.PingContext)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(metrics.New))
	must(c.Provide(newDB))
	must(c.Provide(newRetryOptions))
	must(c.Provide(newGateway))

	// caches
	must(c.Provide(newAuthCache))
	must(c.Provide(newTeamsCache))
	must(c.Provide(newTypesCache))
	must(c.Provide(newSummaryCache))

	// repositories
	must(c.Provide(pgrepos.NewUserRepository, dig.As(new(user.Repository), new(user.Provisioner))))
	must(c.Provide(pgrepos.NewMembershipRepository, dig.As(new(membership.Repository))))
	must(c.Provide(pgrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(pgrepos.NewGradingRepository, dig.As(new(grading.Repository))))
	must(c.Provide(pgrepos.NewChatRepository, dig.As(new(chat.Repository))))
	must(c.Provide(pgrepos.NewTeamRepository, dig.As(new(team.Repository))))
	must(c.Provide(pgrepos.NewHealthRepository, dig.As(new(health.Repository))))
	must(c.Provide(pgrepos.NewTelemetryRepository, dig.As(new(telemetry.Repository))))
	must(c.Provide(pgrepos.NewNotificationRepository, dig.As(new(notify.Repository))))

	// outbound
	must(c.Provide(newEmailService))
	must(c.Provide(newTelegramSender))
	must(c.Provide(newFunctionInvoker))
	must(c.Provide(newJobs))
	must(c.Provide(newFunctionDispatcher))
	must(c.Provide(newTelemetrySink))
	must(c.Provide(newNotifyDispatcher))

	// domain
	must(c.Provide(user.NewService))
	must(c.Provide(newMembershipService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(grading.NewService))
	must(c.Provide(newChatService))
	must(c.Provide(team.NewService))
	must(c.Provide(newHealthService))
	must(c.Provide(newTelemetryService))
	must(c.Provide(video.NewService))

	// api
	must(c.Provide(newFeed))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newServer))
	must(c.Provide(newDebugServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
