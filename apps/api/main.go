package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/margdarshak/gateway/apps/api/echo"
	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
	appfs "github.com/margdarshak/gateway/fs"
	alertsvc "github.com/margdarshak/gateway/services/alert"
	emailsvc "github.com/margdarshak/gateway/services/email"
	llmsvc "github.com/margdarshak/gateway/services/llm"
	logsvc "github.com/margdarshak/gateway/services/logger"
	searchsvc "github.com/margdarshak/gateway/services/search"
	"github.com/margdarshak/gateway/storage/database"
	sqlxrepos "github.com/margdarshak/gateway/storage/database/sqlx"
	"github.com/margdarshak/gateway/storage/supabase"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	opts := gateway.NewOptions(conf)
	clients := llmsvc.NewClients(conf)
	mailSvc := emailsvc.NewService(conf, logger)

	svc := gateway.NewService(
		gateway.Deps{
			Identity:  supabase.NewIdentityResolver(conf),
			Profiles:  sqlxrepos.NewProfileRepository(db),
			Knowledge: sqlxrepos.NewKnowledgeRepository(db),
			Embedder:  clients.Workers,
			Searcher:  searchsvc.NewSerper(conf.Providers.SerperURL, conf.Providers.SerperKey, conf.Gateway.UpstreamTimeout),
			Vision:    clients.Workers,
			Chat:      clients.Chat,
			Images:    clients.Images,
			Alerter:   alertsvc.NewAlerter(conf, opts.System, mailSvc, logger),
			Logger:    logger,
		},
		opts,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	if err = core.ParseEmailTemplates(appfs.FS); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Gateway:    svc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
