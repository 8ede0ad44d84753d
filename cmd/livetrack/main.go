package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/livetrack/internal/api"
	"github.com/p-blackswan/livetrack/internal/bus"
	"github.com/p-blackswan/livetrack/internal/config"
	"github.com/p-blackswan/livetrack/internal/gateway"
	"github.com/p-blackswan/livetrack/internal/health"
	"github.com/p-blackswan/livetrack/internal/lifecycle"
	"github.com/p-blackswan/livetrack/internal/metrics"
	"github.com/p-blackswan/livetrack/internal/registry"
	"github.com/p-blackswan/livetrack/internal/simulator"
	"github.com/p-blackswan/livetrack/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("api_addr", cfg.APIListenAddr).
		Str("ws_addr", cfg.WSListenAddr).
		Str("db_path", cfg.DBPath).
		Msg("starting livetrack")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Persistence adapter. The only startup failure fatal to the process.
	dataStore, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer dataStore.Close()

	m := metrics.New()

	// Core: registry + bus + controller, explicitly constructed and wired.
	reg := registry.New()
	eventBus := bus.New(cfg.SubscriberQueueSize, m, logger)
	controller := lifecycle.New(reg, dataStore, eventBus, m, logger)

	// Rehydrate persisted projects so restarts keep serving known state.
	persisted, err := dataStore.ListProjects()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load persisted projects")
	} else {
		for _, p := range persisted {
			reg.Adopt(p)
		}
		m.ProjectsTracked.Set(float64(reg.Len()))
		logger.Info().Int("projects", len(persisted)).Msg("registry rehydrated")
	}

	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := dataStore.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	sim := simulator.New(controller, cfg.SimulatorStepInterval, cfg.SimulatorFileInterval, logger)
	startBuild := func(projectID string) {
		go func() {
			if err := sim.Run(ctx, projectID); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("project_id", projectID).Msg("simulated build aborted")
			}
		}()
	}

	handlers := api.NewHandlers(controller, checker, startBuild, logger)
	apiServer := api.NewServer(api.ServerConfig{
		ListenAddr:  cfg.APIListenAddr,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: api.RateLimitConfig{
			RPS:           cfg.RateLimitRPS,
			Burst:         cfg.RateLimitBurst,
			IdleTTL:       cfg.RateLimitIdleTTL,
			SweepInterval: cfg.RateLimitSweepEach,
		},
	}, handlers, m, logger)

	// WebSocket gateway + probes + metrics on a plain net/http server.
	gw := gateway.New(reg, eventBus, cfg.SendTimeout, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/live", gw.Handler())
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", health.LivenessHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())

	wsServer := &http.Server{
		Addr:        cfg.WSListenAddr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.WSListenAddr).Msg("websocket server starting")
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("websocket server error")
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("websocket server shutdown error")
	}
	if err := apiServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	eventBus.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("livetrack stopped")
}
