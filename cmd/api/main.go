package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/app"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/config"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/generation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/lesson"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := app.Deps{
		Retry:  retry.Policy{MaxAttempts: cfg.RetryMaxAttempts, Delay: cfg.RetryDelay},
		Logger: log,
		Checks: map[string]func(context.Context) error{},
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", "error", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, store.Migrations, "migrations"); err != nil {
			log.Fatal("migrations failed", "error", err)
		}
		annotations := store.NewPostgresStore(db)
		deps.Annotations = annotations
		deps.Checks["postgres"] = annotations.Ping
		log.Info("annotation log enabled")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		drafts, err := draft.NewRedisStore(cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			log.Fatal("redis connection failed", "error", err)
		}
		defer drafts.Close()
		deps.Drafts = drafts
		deps.Checks["redis"] = drafts.Ping
		log.Info("using Redis for drafts")
	} else {
		deps.Drafts = draft.NewMemoryStore()
		log.Info("using in-memory drafts")
	}

	// A configured service token wins; otherwise the caller's own bearer
	// token is forwarded.
	creds := credential.Chain(credential.Static(cfg.GenerationToken), credential.FromContext())
	deps.Generator = generation.New(generation.Config{
		BaseURL:     cfg.GenerationURL,
		Timeout:     cfg.GenerationTimeout,
		RPS:         cfg.GenerationRPS,
		Credentials: creds,
		Logger:      log,
	})
	deps.Persister = lesson.New(cfg.LessonsURL, credential.FromContext(), 30*time.Second, log)

	service := app.New(deps)
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation round-trips can take most of a minute.
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("annotation API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
	}
}
