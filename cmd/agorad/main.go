// Command agorad hosts the sync layer for local development: it keeps
// the Redis-backed store connected, exposes store metrics and a health
// endpoint, and tails the feed so changes are visible from a terminal.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"agora/blob"
	"agora/blob/s3blob"
	"agora/config"
	"agora/identity"
	"agora/repository"
	"agora/store/redisstore"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := config.LoadConfig()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	st := redisstore.New(rdb,
		redisstore.WithPrefix(cfg.KeyPrefix),
		redisstore.WithLogger(log),
		redisstore.WithRegisterer(registry),
	)

	var blobs blob.Store
	if cfg.AWSAccessKeyID != "" {
		s3, err := s3blob.New(s3blob.Config{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.AWSEndpoint,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			log.Error("s3 setup failed", "error", err)
			os.Exit(1)
		}
		blobs = s3
	} else {
		log.Warn("no AWS credentials configured, using in-memory blob store")
		blobs = blob.NewMemory()
	}

	authz := identity.AdminList(cfg.AdminIDs())
	ids := identity.NewTokenProvider([]byte(cfg.JWTSecret), func() string {
		return os.Getenv("AGORA_SESSION_TOKEN")
	})

	feedRepo := repository.NewFeedRepository(st, blobs, authz, cfg.FeedWindow, log)

	viewerID, _ := ids.CurrentUserID(ctx)
	posts, err := feedRepo.Posts(ctx, viewerID)
	if err != nil {
		log.Error("feed subscription failed", "error", err)
		os.Exit(1)
	}
	go func() {
		for window := range posts {
			log.Info("feed window", "posts", len(window))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		log.Info("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}
	if err := rdb.Close(); err != nil {
		log.Error("redis close failed", "error", err)
	}
}
