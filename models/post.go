package models

import "time"

// Field names used for partial document updates. Counters must only be
// written through atomic increments, never as part of a full rewrite.
const (
	FieldContent        = "content"
	FieldTags           = "tags"
	FieldLocation       = "location"
	FieldLikeCount      = "likeCount"
	FieldCommentCount   = "commentCount"
	FieldLastModifiedAt = "lastModifiedAt"
)

// Post represents a feed post document. AuthorName and AuthorAvatar are
// denormalized snapshots taken at creation time.
type Post struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"authorId"`
	AuthorName     string    `json:"authorName"`
	AuthorAvatar   string    `json:"authorAvatar"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags"`
	Location       string    `json:"location"`
	ImageURLs      []string  `json:"imageUrls"`
	LikeCount      int64     `json:"likeCount"`
	CommentCount   int64     `json:"commentCount"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// ImageUpload is a pending image attachment for a new post or product.
type ImageUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// PostDraft carries the author-supplied fields of a new post.
type PostDraft struct {
	AuthorID string
	Content  string
	Tags     []string
	Location string
	Images   []ImageUpload
}

// PostSnapshot is one emission of a single-post subscription. Exists is
// false when the post was deleted or never existed.
type PostSnapshot struct {
	Post   Post
	Exists bool
}
