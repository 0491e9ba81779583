package models

import "time"

// ProductReview represents a buyer review on a product.
type ProductReview struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	AuthorID  string    `json:"authorId"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
