package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"agora/blob"
	"agora/identity"
	"agora/models"
	"agora/store"
)

// DefaultFeedWindow is the bounded number of recent posts a feed
// subscription observes.
const DefaultFeedWindow = 30

// FeedRepository defines the data operations behind the feed screens.
type FeedRepository interface {
	// Posts emits the ranked feed window: posts by followed authors
	// first, then all others, recency order preserved inside each group.
	Posts(ctx context.Context, viewerID string) (<-chan []models.Post, error)
	PostByID(ctx context.Context, postID string) (<-chan models.PostSnapshot, error)
	UserPosts(ctx context.Context, userID string) (<-chan []models.Post, error)
	FavoritePosts(ctx context.Context, userID string) (<-chan []models.Post, error)

	CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error)
	UpdatePost(ctx context.Context, actorID string, post models.Post) error
	DeletePost(ctx context.Context, actorID, postID string) error

	PostLiked(ctx context.Context, postID, userID string) (<-chan bool, error)
	LikePost(ctx context.Context, postID, userID string) error
	UnlikePost(ctx context.Context, postID, userID string) error

	PostFavorited(ctx context.Context, postID, userID string) (<-chan bool, error)
	FavoritePost(ctx context.Context, postID, userID string) error
	UnfavoritePost(ctx context.Context, postID, userID string) error

	Comments(ctx context.Context, postID string) (<-chan []models.Comment, error)
	AddComment(ctx context.Context, authorID, postID, text string) (*models.Comment, error)
	DeleteComment(ctx context.Context, actorID, commentID string) error

	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	Following(ctx context.Context, userID string) ([]string, error)
}

// feedRepository implements FeedRepository
type feedRepository struct {
	store  store.Client
	blobs  blob.Store
	authz  identity.Authorizer
	window int
	log    *slog.Logger
}

// NewFeedRepository creates a new feed repository. window <= 0 selects
// DefaultFeedWindow; a nil logger selects slog.Default.
func NewFeedRepository(st store.Client, blobs blob.Store, authz identity.Authorizer, window int, log *slog.Logger) FeedRepository {
	if window <= 0 {
		window = DefaultFeedWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &feedRepository{store: st, blobs: blobs, authz: authz, window: window, log: log}
}

func postDoc(id string) store.Doc    { return store.Doc{Collection: models.ColPosts, ID: id} }
func userDoc(id string) store.Doc    { return store.Doc{Collection: models.ColUsers, ID: id} }
func commentDoc(id string) store.Doc { return store.Doc{Collection: models.ColComments, ID: id} }

func likeDoc(userID, postID string) store.Doc {
	return store.Doc{Collection: models.ColPostLikes, ID: models.LikeKey(userID, postID)}
}

func postFavDoc(userID, postID string) store.Doc {
	return store.Doc{Collection: models.ColPostFavorites, ID: models.FavoriteKey(userID, postID)}
}

func followDoc(followerID, followeeID string) store.Doc {
	return store.Doc{Collection: models.ColFollows, ID: models.FollowKey(followerID, followeeID)}
}

func (r *feedRepository) Posts(ctx context.Context, viewerID string) (<-chan []models.Post, error) {
	q := store.NewQuery(models.ColPosts).
		OrderBy("createdAt", store.Desc).
		Limit(r.window)
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.Post, 1)
	go func() {
		defer close(out)
		for snap := range in {
			posts := decodeAll[models.Post](snap, r.log, "post")
			followed, err := r.Following(ctx, viewerID)
			if err != nil {
				r.log.Warn("follow lookup failed, emitting unpartitioned feed", "viewer", viewerID, "error", err)
				followed = nil
			}
			ranked := rankPosts(posts, followed)
			select {
			case out <- ranked:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// rankPosts stable-partitions the window into posts by followed authors
// followed by all others. Total count stays bounded by the window size
// regardless of follow-graph size.
func rankPosts(posts []models.Post, followed []string) []models.Post {
	if len(followed) == 0 {
		return posts
	}
	followedSet := make(map[string]struct{}, len(followed))
	for _, id := range followed {
		followedSet[id] = struct{}{}
	}
	ranked := make([]models.Post, 0, len(posts))
	var rest []models.Post
	for _, p := range posts {
		if _, ok := followedSet[p.AuthorID]; ok {
			ranked = append(ranked, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(ranked, rest...)
}

func (r *feedRepository) PostByID(ctx context.Context, postID string) (<-chan models.PostSnapshot, error) {
	in, err := r.store.SubscribeDoc(ctx, postDoc(postID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan models.PostSnapshot, 1)
	go func() {
		defer close(out)
		for snap := range in {
			ps := models.PostSnapshot{Exists: snap.Exists}
			if snap.Exists {
				if err := snap.DataTo(&ps.Post); err != nil {
					r.log.Warn("skipping malformed document", "kind", "post", "doc", snap.Doc.ID, "error", err)
					continue
				}
			}
			select {
			case out <- ps:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *feedRepository) UserPosts(ctx context.Context, userID string) (<-chan []models.Post, error) {
	q := store.NewQuery(models.ColPosts).
		Where("authorId", store.OpEqual, userID).
		OrderBy("createdAt", store.Desc)
	return r.postStream(ctx, q)
}

func (r *feedRepository) postStream(ctx context.Context, q store.Query) (<-chan []models.Post, error) {
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.Post, 1)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- decodeAll[models.Post](snap, r.log, "post"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *feedRepository) FavoritePosts(ctx context.Context, userID string) (<-chan []models.Post, error) {
	q := store.NewQuery(models.ColPostFavorites).
		Where("userId", store.OpEqual, userID).
		OrderBy("createdAt", store.Desc)
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.Post, 1)
	go func() {
		defer close(out)
		for snap := range in {
			favs := decodeAll[models.Favorite](snap, r.log, "favorite")
			ids := make([]string, 0, len(favs))
			for _, f := range favs {
				ids = append(ids, f.TargetID)
			}
			posts, err := r.postsByIDs(ctx, ids)
			if err != nil {
				r.log.Warn("favorite posts fetch failed", "user", userID, "error", err)
				return
			}
			select {
			case out <- posts:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *feedRepository) postsByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	var posts []models.Post
	for _, chunk := range chunkIDs(ids, inFilterLimit) {
		snaps, err := r.store.Documents(ctx, store.NewQuery(models.ColPosts).Where("id", store.OpIn, chunk))
		if err != nil {
			return nil, err
		}
		posts = append(posts, decodeAll[models.Post](snaps, r.log, "post")...)
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (r *feedRepository) CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error) {
	authorSnap, err := r.store.Get(ctx, userDoc(draft.AuthorID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	if !authorSnap.Exists {
		return nil, models.NewNotFoundError("user", draft.AuthorID)
	}
	var author models.User
	if err := authorSnap.DataTo(&author); err != nil {
		return nil, wrapRemote(err)
	}

	postID := r.store.NewID()
	urls := make([]string, 0, len(draft.Images))
	for i, img := range draft.Images {
		url, err := r.blobs.Upload(ctx, fmt.Sprintf("posts/%s/%d-%s", postID, i, img.Name), img.Data, img.ContentType)
		if err != nil {
			return nil, wrapRemote(err)
		}
		urls = append(urls, url)
	}

	now := time.Now().UTC()
	post := models.Post{
		ID:             postID,
		AuthorID:       author.ID,
		AuthorName:     author.Username,
		AuthorAvatar:   author.Avatar,
		Content:        draft.Content,
		Tags:           draft.Tags,
		Location:       draft.Location,
		ImageURLs:      urls,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	data, err := store.DataFrom(post)
	if err != nil {
		return nil, wrapRemote(err)
	}
	if err := r.store.Set(ctx, postDoc(postID), data); err != nil {
		return nil, wrapRemote(err)
	}
	return &post, nil
}

// UpdatePost rewrites only the editable fields after re-reading current
// state, so denormalized author info, counters and createdAt survive a
// concurrent counter update.
func (r *feedRepository) UpdatePost(ctx context.Context, actorID string, post models.Post) error {
	curSnap, err := r.store.Get(ctx, postDoc(post.ID))
	if err != nil {
		return wrapRemote(err)
	}
	if !curSnap.Exists {
		return models.NewNotFoundError("post", post.ID)
	}
	var current models.Post
	if err := curSnap.DataTo(&current); err != nil {
		return wrapRemote(err)
	}
	if current.AuthorID != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the author or an admin may edit a post")
	}
	fields := map[string]any{
		models.FieldContent:        post.Content,
		models.FieldTags:           post.Tags,
		models.FieldLocation:       post.Location,
		models.FieldLastModifiedAt: time.Now().UTC(),
	}
	return wrapRemote(r.store.Update(ctx, postDoc(post.ID), fields))
}

// DeletePost cascades comments, likes and favorites in one atomic batch.
// Images stay in blob storage; garbage collection is deferred.
func (r *feedRepository) DeletePost(ctx context.Context, actorID, postID string) error {
	curSnap, err := r.store.Get(ctx, postDoc(postID))
	if err != nil {
		return wrapRemote(err)
	}
	if !curSnap.Exists {
		return models.NewNotFoundError("post", postID)
	}
	var current models.Post
	if err := curSnap.DataTo(&current); err != nil {
		return wrapRemote(err)
	}
	if current.AuthorID != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the author or an admin may delete a post")
	}

	batch := r.store.Batch()
	for _, col := range []string{models.ColComments, models.ColPostLikes, models.ColPostFavorites} {
		snaps, err := r.store.Documents(ctx, store.NewQuery(col).Where("postId", store.OpEqual, postID))
		if err != nil {
			return wrapRemote(err)
		}
		for _, s := range snaps {
			batch.Delete(s.Doc)
		}
	}
	batch.Delete(postDoc(postID))
	return wrapRemote(batch.Commit(ctx))
}

func (r *feedRepository) PostLiked(ctx context.Context, postID, userID string) (<-chan bool, error) {
	in, err := r.store.SubscribeDoc(ctx, likeDoc(userID, postID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- snap.Exists:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// LikePost creates the composite-key like record and increments the
// post's counter, atomically and exactly once per record creation.
// Liking an already-liked post is a no-op.
func (r *feedRepository) LikePost(ctx context.Context, postID, userID string) error {
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		postSnap, err := tx.Get(postDoc(postID))
		if err != nil {
			return err
		}
		if !postSnap.Exists {
			return models.NewNotFoundError("post", postID)
		}
		doc := likeDoc(userID, postID)
		likeSnap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if likeSnap.Exists {
			return nil
		}
		like := models.Like{
			ID:        doc.ID,
			UserID:    userID,
			PostID:    postID,
			CreatedAt: time.Now().UTC(),
		}
		data, err := store.DataFrom(like)
		if err != nil {
			return err
		}
		tx.Set(doc, data)
		tx.Update(postDoc(postID), map[string]any{models.FieldLikeCount: store.Increment(1)})
		return nil
	}))
}

// UnlikePost reads existence and conditionally deletes-and-decrements in
// one transaction, so concurrent unlikes cannot double-decrement.
func (r *feedRepository) UnlikePost(ctx context.Context, postID, userID string) error {
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		doc := likeDoc(userID, postID)
		likeSnap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if !likeSnap.Exists {
			return nil
		}
		tx.Delete(doc)
		postSnap, err := tx.Get(postDoc(postID))
		if err != nil {
			return err
		}
		if postSnap.Exists {
			tx.Update(postDoc(postID), map[string]any{models.FieldLikeCount: store.Increment(-1)})
		}
		return nil
	}))
}

func (r *feedRepository) PostFavorited(ctx context.Context, postID, userID string) (<-chan bool, error) {
	in, err := r.store.SubscribeDoc(ctx, postFavDoc(userID, postID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- snap.Exists:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// FavoritePost is an idempotent existence-guarded add with no counter
// side effect on the post.
func (r *feedRepository) FavoritePost(ctx context.Context, postID, userID string) error {
	postSnap, err := r.store.Get(ctx, postDoc(postID))
	if err != nil {
		return wrapRemote(err)
	}
	if !postSnap.Exists {
		return models.NewNotFoundError("post", postID)
	}
	doc := postFavDoc(userID, postID)
	favSnap, err := r.store.Get(ctx, doc)
	if err != nil {
		return wrapRemote(err)
	}
	if favSnap.Exists {
		return nil
	}
	fav := models.Favorite{
		ID:        doc.ID,
		UserID:    userID,
		TargetID:  postID,
		CreatedAt: time.Now().UTC(),
	}
	data, err := store.DataFrom(fav)
	if err != nil {
		return wrapRemote(err)
	}
	return wrapRemote(r.store.Set(ctx, doc, data))
}

// UnfavoritePost removes the favorite record; removing a non-existent
// favorite is a no-op, not an error.
func (r *feedRepository) UnfavoritePost(ctx context.Context, postID, userID string) error {
	return wrapRemote(r.store.Delete(ctx, postFavDoc(userID, postID)))
}

func (r *feedRepository) Comments(ctx context.Context, postID string) (<-chan []models.Comment, error) {
	q := store.NewQuery(models.ColComments).
		Where("postId", store.OpEqual, postID).
		OrderBy("createdAt", store.Asc)
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.Comment, 1)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- decodeAll[models.Comment](snap, r.log, "comment"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *feedRepository) AddComment(ctx context.Context, authorID, postID, text string) (*models.Comment, error) {
	authorSnap, err := r.store.Get(ctx, userDoc(authorID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	if !authorSnap.Exists {
		return nil, models.NewNotFoundError("user", authorID)
	}
	var author models.User
	if err := authorSnap.DataTo(&author); err != nil {
		return nil, wrapRemote(err)
	}
	postSnap, err := r.store.Get(ctx, postDoc(postID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	if !postSnap.Exists {
		return nil, models.NewNotFoundError("post", postID)
	}

	comment := models.Comment{
		ID:           r.store.NewID(),
		PostID:       postID,
		AuthorID:     author.ID,
		AuthorName:   author.Username,
		AuthorAvatar: author.Avatar,
		Text:         text,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := store.DataFrom(comment)
	if err != nil {
		return nil, wrapRemote(err)
	}
	batch := r.store.Batch().
		Set(commentDoc(comment.ID), data).
		Update(postDoc(postID), map[string]any{models.FieldCommentCount: store.Increment(1)})
	if err := batch.Commit(ctx); err != nil {
		return nil, wrapRemote(err)
	}
	return &comment, nil
}

// DeleteComment is allowed for the comment author, the post owner, or an
// admin, and keeps the post's comment counter in step.
func (r *feedRepository) DeleteComment(ctx context.Context, actorID, commentID string) error {
	commentSnap, err := r.store.Get(ctx, commentDoc(commentID))
	if err != nil {
		return wrapRemote(err)
	}
	if !commentSnap.Exists {
		return models.NewNotFoundError("comment", commentID)
	}
	var comment models.Comment
	if err := commentSnap.DataTo(&comment); err != nil {
		return wrapRemote(err)
	}

	postSnap, err := r.store.Get(ctx, postDoc(comment.PostID))
	if err != nil {
		return wrapRemote(err)
	}
	var postOwner string
	if postSnap.Exists {
		var post models.Post
		if err := postSnap.DataTo(&post); err != nil {
			return wrapRemote(err)
		}
		postOwner = post.AuthorID
	}
	if comment.AuthorID != actorID && postOwner != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the comment author, post owner or an admin may delete a comment")
	}

	batch := r.store.Batch().Delete(commentDoc(commentID))
	if postSnap.Exists {
		batch.Update(postDoc(comment.PostID), map[string]any{models.FieldCommentCount: store.Increment(-1)})
	}
	return wrapRemote(batch.Commit(ctx))
}

func (r *feedRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	doc := followDoc(followerID, followeeID)
	follow := models.Follow{
		ID:         doc.ID,
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := store.DataFrom(follow)
	if err != nil {
		return wrapRemote(err)
	}
	return wrapRemote(r.store.Set(ctx, doc, data))
}

func (r *feedRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return wrapRemote(r.store.Delete(ctx, followDoc(followerID, followeeID)))
}

func (r *feedRepository) Following(ctx context.Context, userID string) ([]string, error) {
	snaps, err := r.store.Documents(ctx, store.NewQuery(models.ColFollows).Where("followerId", store.OpEqual, userID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	follows := decodeAll[models.Follow](snaps, r.log, "follow")
	ids := make([]string, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FolloweeID)
	}
	return ids, nil
}
