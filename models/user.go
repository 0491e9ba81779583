// Package models contains data structures for the application's domain models.
package models

import "time"

// Collection names in the remote document store.
const (
	ColUsers            = "users"
	ColPosts            = "posts"
	ColComments         = "comments"
	ColPostLikes        = "postLikes"
	ColPostFavorites    = "postFavorites"
	ColFollows          = "follows"
	ColProducts         = "products"
	ColProductFavorites = "productFavorites"
	ColProductReviews   = "productReviews"
)

// User represents a user profile document.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
}
