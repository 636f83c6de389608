package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron"
	"go.uber.org/dig"

	dig_container "github.com/hoopdesk/hoopdesk/apps/api/di/dig"
	echoapi "github.com/hoopdesk/hoopdesk/apps/api/echo"
	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/health"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/user"
	"github.com/hoopdesk/hoopdesk/services/metrics"
)

// sweepSchedule runs the membership maintenance once a day, just after midnight UTC.
const sweepSchedule = "0 5 0 * * *"

type appParam struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	DBLoggerParam dig_container.DBLoggerParam
	DB            *sqlx.DB
	Validate      *validator.Validate
	Translator    ut.Translator
	Server        *echoapi.Server
	DebugServer   *metrics.DebugServer
	Feed          *dig_container.Feed
	Jobs          *dig_container.Jobs
	Sink          *dig_container.TelemetrySink
	Memberships   *membership.Service
	Health        *health.Service
}

func startWithDig() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(app appParam) {
	conf, apiLogger, server := app.Conf, app.Logger, app.Server

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.InitValidators(app.Validate, app.Translator)
	user.InitValidators(app.Validate, app.Translator)

	dbLogger := app.DBLoggerParam.Logger
	defer func() {
		if err := app.DB.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /health, /metrics and /debug/vars

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := app.DebugServer.Start(); err != nil && err != http.ErrServerClosed {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Background Jobs

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go func() {
		// the API keeps serving without the feed; live views then degrade to single fetches
		if err := app.Feed.Hub.Run(bgCtx); err != nil {
			apiLogger.Error(fmt.Sprintf("change feed stopped: %v", err), err)
		}
	}()

	var workerDone chan error // nil unless a queue worker runs
	if app.Jobs.Worker != nil {
		workerDone = make(chan error, 1)
		go func() { workerDone <- app.Jobs.Worker.Run(bgCtx) }()
	}

	scheduler := cron.NewWithLocation(time.UTC)
	must(scheduler.AddFunc(sweepSchedule, func() {
		sweep(bgCtx, app.Memberships, apiLogger)
	}))
	scheduler.Start()

	// =========================================================================
	// Start API Service

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case err := <-workerDone:
		apiLogger.Error(fmt.Sprintf("job worker stopped: %v", err), err)
		shutdown(app, scheduler, stopBackground)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		shutdown(app, scheduler, stopBackground)
	}
}

func shutdown(app appParam, scheduler *cron.Cron, stopBackground context.CancelFunc) {
	conf, apiLogger, server := app.Conf, app.Logger, app.Server

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()

	// asking listener to shut down and shed load
	if err := server.Shutdown(ctx); err != nil {
		apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = server.Close(); err != nil {
			apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
	if err := app.DebugServer.Shutdown(ctx); err != nil {
		apiLogger.Warn(fmt.Sprintf("could not stop debug server: %v", err))
	}

	stopBackground()

	// drain fire and forget work before closing what it writes to
	app.Health.Wait()
	if app.Jobs.Async != nil {
		app.Jobs.Async.Wait()
	}
	if err := app.Sink.Close(); err != nil {
		apiLogger.Warn(fmt.Sprintf("closing telemetry sink: %v", err))
	}
	app.Jobs.Close()
}

func sweep(ctx context.Context, svc *membership.Service, logger core.Logger) {
	ctx = gateway.WithActor(ctx, gateway.SystemActor)
	res, err := svc.Sweep(ctx, core.Today())
	if err != nil {
		logger.Error(fmt.Sprintf("membership sweep: %v", err), err)
		return
	}
	logger.Info(fmt.Sprintf("membership sweep: %d deactivated, %d low on credits", res.Deactivated, len(res.LowCredit)))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
