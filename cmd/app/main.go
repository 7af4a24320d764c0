package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/config"
	"github.com/local/labelbridge/internal/geometry"
	"github.com/local/labelbridge/internal/logger"
	"github.com/local/labelbridge/internal/metrics"
	"github.com/local/labelbridge/internal/pipeline"
	"github.com/local/labelbridge/internal/queue"
	"github.com/local/labelbridge/internal/server"
	"github.com/local/labelbridge/internal/spool"
	"github.com/local/labelbridge/internal/storage"
	"github.com/local/labelbridge/internal/store"
	"github.com/local/labelbridge/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	_ = logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logger.Close()

	metrics.Init()

	// Label profiles are validated up front: a malformed profile aborts
	// before any page could be mis-cropped.
	set, err := geometry.Load(cfg.ProfilePath)
	if err != nil {
		var cerr *geometry.ConfigError
		if errors.As(err, &cerr) {
			log.Fatal().Err(cerr).Msg("invalid label profile configuration")
		}
		log.Fatal().Err(err).Str("file", cfg.ProfilePath).Msg("failed to load label profiles")
	}
	log.Info().Int("profiles", len(set.Profiles)).Str("file", cfg.ProfilePath).Msg("label profiles loaded")

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	// Print spooler, optionally wrapped with the S3 archiver.
	cups := spool.NewCUPS(cfg.Spool)
	if !cups.IsAvailable() {
		log.Warn().Str("bin", cfg.Spool.LpBin).Msg("lp not found in PATH; print submissions will fail")
	}
	var spooler pipeline.Spooler = cups
	if cfg.Archive.Enabled {
		arch, err := storage.NewArchiver(context.Background(), cfg.Archive)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init output archiver")
		}
		spooler = &worker.ArchivingSpooler{Spool: cups, Archiver: arch}
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("output archiving enabled")
	}

	pipe := pipeline.New(set, spooler)

	consumer := "worker-" + uuid.NewString()[:8]
	wrk := worker.New(cfg, rq, rs, pipe, consumer)
	wrk.Start()
	defer wrk.Stop(context.Background())

	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for range t.C {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if stream, dlq, err := rq.Depth(ctx); err == nil {
				metrics.SetQueueDepth("stream", stream)
				metrics.SetQueueDepth("dlq", dlq)
			}
			cancel()
		}
	}()

	srv := server.New(rq, rs)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpSrv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}
