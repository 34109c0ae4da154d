package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atelier-server-go/config"
	"atelier-server-go/db"
	"atelier-server-go/handlers"
	"atelier-server-go/logging"
	"atelier-server-go/metrics"
	"atelier-server-go/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New(nil, "info", "console")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(nil, cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Legacy store (backend A). Startup continues when Redis is down; Init reports it.
	redisClient, err := db.InitializeRedisClient(ctx, db.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("legacy store unreachable at startup")
	}
	legacy := db.NewRedisStore(redisClient, cfg.RedisPrefix, log)

	// Local store (backend B)
	local, err := db.OpenLocalStore(cfg.LocalStoreDriver, cfg.LocalStorePath)
	if err != nil {
		log.Fatal().Err(err).Str("driver", string(cfg.LocalStoreDriver)).Msg("could not open local store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	facade := storage.New(legacy, local,
		storage.WithLogger(log),
		storage.WithMetrics(metrics.New(reg)),
	)
	report, err := facade.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}

	checkAndSeedData(facade, cfg.DefaultClassroomName, log)

	apiHandler := handlers.NewAPIHandler(facade, report, log)
	apiHandler.DefaultName = cfg.DefaultClassroomName
	apiHandler.EnableDebugAPI = cfg.GinMode == gin.DebugMode

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(apiHandler, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("backend", string(report.Backend)).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := facade.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("closing stores")
	}
}

// checkAndSeedData creates the default classroom when the selected backend holds none
func checkAndSeedData(facade *storage.Facade, name string, log zerolog.Logger) {
	if existing := facade.ListClassrooms(); len(existing) > 0 {
		log.Info().Int("classrooms", len(existing)).Msg("found existing classrooms; skipping bootstrap")
		return
	}
	c := facade.CreateClassroom(name)
	log.Info().Str("classroom_id", c.ID).Str("name", c.Name).Msg("no classroom found; created default classroom")
}
