// Command seed populates a Redis-backed store with demo data.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"agora/blob"
	"agora/config"
	"agora/identity"
	"agora/repository"
	"agora/seed"
	"agora/store/redisstore"
)

func main() {
	numUsers := flag.Int("users", 25, "number of users to create")
	numPosts := flag.Int("posts", 100, "number of posts to create")
	numProducts := flag.Int("products", 40, "number of listings to create")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := config.LoadConfig()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	st := redisstore.New(rdb, redisstore.WithPrefix(cfg.KeyPrefix), redisstore.WithLogger(log))

	// The seeder runs as a synthetic admin so it can drive the approval
	// workflow end to end.
	const seedAdmin = "seed-admin"
	authz := identity.AdminList(append(cfg.AdminIDs(), seedAdmin))
	blobs := blob.NewMemory()

	feedRepo := repository.NewFeedRepository(st, blobs, authz, cfg.FeedWindow, log)
	marketRepo := repository.NewMarketRepository(st, blobs, authz, log)
	s := seed.NewSeeder(st, feedRepo, marketRepo, log)

	users, err := s.Users(ctx, *numUsers)
	if err != nil {
		log.Error("user seeding failed", "error", err)
		os.Exit(1)
	}
	if err := s.Follows(ctx, users); err != nil {
		log.Error("follow seeding failed", "error", err)
		os.Exit(1)
	}
	if err := s.Posts(ctx, users, *numPosts); err != nil {
		log.Error("post seeding failed", "error", err)
		os.Exit(1)
	}
	if err := s.Products(ctx, users, *numProducts, seedAdmin); err != nil {
		log.Error("product seeding failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeding complete")
}
