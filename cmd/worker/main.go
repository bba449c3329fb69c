package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/api"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/connections"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/worker"
)

func main() {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Info().Str("worker_id", cfg.WorkerID).Msg("worker starting")

	metrics := services.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		logging.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Connect to Firebase
	fb, err := connections.InitFirebase(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize Firebase")
	}
	defer fb.Close()

	preferences := integrations.NewPreferenceStore(fb.Firestore)
	tokens := integrations.NewTokenRegistry(fb.Firestore, metrics)
	history := integrations.NewHistoryLog(fb.Firestore, metrics)
	tasks := integrations.NewTaskStore(fb.Firestore)
	identity := integrations.NewIdentityResolver(fb.Auth)

	limiter := rate.NewLimiter(rate.Limit(cfg.PushRateLimit), cfg.PushRateLimit)
	dispatcher := integrations.NewPushDispatcher(fb.Messaging, tokens, limiter, metrics)

	airtable := integrations.NewAirtable(cfg.Airtable)
	teams := integrations.NewTeams(cfg.TeamsWebhookURL)

	deps := worker.FanoutDeps{
		Identity:    identity,
		Preferences: preferences,
		Tokens:      tokens,
		Push:        dispatcher,
		History:     history,
		Metrics:     metrics,
		BaseURL:     cfg.AppBaseURL,
		Concurrency: cfg.FanoutConcurrency,
	}
	if cfg.Smtp.Enabled() {
		mailer := integrations.NewMailer(cfg.Smtp)
		defer mailer.Close()
		deps.Mailer = mailer
	}
	orchestrator := worker.NewOrchestrator(deps)
	relay := worker.NewTaskRelay(airtable, teams, tasks, cfg.Airtable.TaskTable, cfg.AppBaseURL, metrics)

	// Event bus and router
	wmLogger := logging.NewWatermillAdapter()
	pubsub := worker.NewPubSub(wmLogger)
	router, err := worker.NewRouter(pubsub, orchestrator, relay, metrics, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create event router")
	}
	watcher := worker.NewWatcher(fb.Firestore, pubsub)

	// HTTP API
	apiDeps := api.Deps{
		Airtable:   airtable,
		Teams:      teams,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Identity:   identity,
		History:    history,
		Metrics:    metrics,
	}
	if assistant, err := integrations.NewGeminiAssistant(ctx, cfg); err == nil {
		apiDeps.Assistant = assistant
	} else {
		logging.Warn().Err(err).Msg("AI endpoints disabled")
	}
	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(cfg, api.NewRouter(cfg, api.NewHandler(cfg, apiDeps), registry))

	var wg sync.WaitGroup

	// Start metrics logger
	wg.Add(1)
	go func() {
		defer wg.Done()
		services.LogMetricsPeriodically(ctx, metrics, time.Duration(cfg.MetricsLogIntervalSeconds)*time.Second)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	wg.Add(1)
	go worker.New(cfg.WorkerID, pubsub, router, watcher).Run(ctx, &wg)

	<-ctx.Done()
	logging.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP server shutdown")
	}

	// Wait for in-flight events and background loops
	wg.Wait()
	logging.Info().Msg("Shut down complete")
}
