// Package seed populates the remote store with plausible demo data:
// users, follows, posts with likes and comments, and marketplace
// listings in every lifecycle state.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"agora/models"
	"agora/repository"
	"agora/store"
)

var productCategories = []string{
	"Electronics", "Clothing", "Home", "Sports", "Books", "Toys", "Art",
}

// Seeder writes demo data through the same repositories the app uses,
// so counters and join records stay consistent with their invariants.
type Seeder struct {
	store  store.Client
	feed   repository.FeedRepository
	market repository.MarketRepository
	log    *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(st store.Client, feed repository.FeedRepository, market repository.MarketRepository, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{store: st, feed: feed, market: market, log: log}
}

// Users creates n user profiles directly in the store. Profile
// documents have no invariants of their own, so they skip the
// repository layer.
func (s *Seeder) Users(ctx context.Context, n int) ([]models.User, error) {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		user := models.User{
			ID:        s.store.NewID(),
			Username:  gofakeit.Username(),
			Avatar:    gofakeit.ImageURL(128, 128),
			Bio:       gofakeit.Sentence(8),
			CreatedAt: time.Now().UTC().Add(-time.Duration(gofakeit.Number(1, 90*24)) * time.Hour),
		}
		data, err := store.DataFrom(user)
		if err != nil {
			return nil, err
		}
		doc := store.Doc{Collection: models.ColUsers, ID: user.ID}
		if err := s.store.Set(ctx, doc, data); err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", user.Username, err)
		}
		users = append(users, user)
	}
	s.log.Info("seeded users", "count", len(users))
	return users, nil
}

// Follows wires a sparse follow graph over the users.
func (s *Seeder) Follows(ctx context.Context, users []models.User) error {
	var count int
	for _, follower := range users {
		for _, followee := range users {
			if follower.ID == followee.ID || !gofakeit.Bool() {
				continue
			}
			if err := s.feed.Follow(ctx, follower.ID, followee.ID); err != nil {
				return err
			}
			count++
		}
	}
	s.log.Info("seeded follows", "count", count)
	return nil
}

// Posts creates n posts with likes and comments from random users.
func (s *Seeder) Posts(ctx context.Context, users []models.User, n int) error {
	for i := 0; i < n; i++ {
		author := users[gofakeit.Number(0, len(users)-1)]
		post, err := s.feed.CreatePost(ctx, models.PostDraft{
			AuthorID: author.ID,
			Content:  gofakeit.Paragraph(1, 3, 12, " "),
			Tags:     models.NormalizeTags(gofakeit.HipsterWord() + ", " + gofakeit.HipsterWord()),
			Location: gofakeit.City(),
		})
		if err != nil {
			return fmt.Errorf("seeding post %d: %w", i, err)
		}
		for _, user := range users {
			if gofakeit.Number(0, 3) == 0 {
				if err := s.feed.LikePost(ctx, post.ID, user.ID); err != nil {
					return err
				}
			}
			if gofakeit.Number(0, 5) == 0 {
				if _, err := s.feed.AddComment(ctx, user.ID, post.ID, gofakeit.Sentence(10)); err != nil {
					return err
				}
			}
		}
	}
	s.log.Info("seeded posts", "count", n)
	return nil
}

// Products creates n listings and runs a slice of them through the
// approval workflow so every status is represented. admin must be an
// id the repository's authorizer accepts.
func (s *Seeder) Products(ctx context.Context, users []models.User, n int, admin string) error {
	for i := 0; i < n; i++ {
		seller := users[gofakeit.Number(0, len(users)-1)]
		product, err := s.market.CreateProduct(ctx, models.ProductDraft{
			SellerID:     seller.ID,
			Title:        gofakeit.ProductName(),
			Description:  gofakeit.ProductDescription(),
			Price:        decimal.NewFromFloat(gofakeit.Price(1, 500)),
			Category:     productCategories[gofakeit.Number(0, len(productCategories)-1)],
			Tags:         models.NormalizeTags(gofakeit.HipsterWord()),
			Stock:        int64(gofakeit.Number(0, 40)),
			LimitedStock: gofakeit.Bool(),
		})
		if err != nil {
			return fmt.Errorf("seeding product %d: %w", i, err)
		}

		switch gofakeit.Number(0, 4) {
		case 0: // stays PENDING
		case 1:
			err = s.market.UpdateProductStatus(ctx, admin, product.ID, models.StatusRejected, gofakeit.Sentence(6))
		default:
			if err = s.market.UpdateProductStatus(ctx, admin, product.ID, models.StatusApproved, ""); err != nil {
				break
			}
			if gofakeit.Number(0, 3) == 0 {
				err = s.market.UpdateProductStatus(ctx, seller.ID, product.ID, models.StatusSold, "")
			}
		}
		if err != nil {
			return err
		}

		for _, user := range users {
			if gofakeit.Number(0, 4) == 0 {
				if err := s.market.FavoriteProduct(ctx, product.ID, user.ID); err != nil {
					return err
				}
			}
			if gofakeit.Number(0, 6) == 0 {
				if _, err := s.market.AddReview(ctx, user.ID, product.ID, gofakeit.Number(1, 5), gofakeit.Sentence(12)); err != nil {
					return err
				}
			}
		}
	}
	s.log.Info("seeded products", "count", n)
	return nil
}
