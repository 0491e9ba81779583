package models

import "time"

// JoinKey derives the deterministic id of a join record from its two
// foreign keys. The existence of the keyed record is the boolean state,
// so duplicate toggles naturally collapse into idempotent operations.
func JoinKey(userID, targetID string) string {
	return userID + "-" + targetID
}

// LikeKey returns the document id of a user's like on a post.
func LikeKey(userID, postID string) string { return JoinKey(userID, postID) }

// FavoriteKey returns the document id of a user's favorite on a post or product.
func FavoriteKey(userID, targetID string) string { return JoinKey(userID, targetID) }

// FollowKey returns the document id of a follower/followee edge.
func FollowKey(followerID, followeeID string) string { return JoinKey(followerID, followeeID) }

// Like is a composite-key join record marking that a user liked a post.
// At most one record exists per (user, post) pair.
type Like struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favorite is a composite-key join record marking that a user favorited
// a post or a product; TargetID points into the owning collection.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TargetID  string    `json:"targetId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Follow is a composite-key join record for the follow graph.
type Follow struct {
	ID         string    `json:"id"`
	FollowerID string    `json:"followerId"`
	FolloweeID string    `json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}
