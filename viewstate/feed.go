package viewstate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"agora/identity"
	"agora/models"
	"agora/repository"
)

// FeedState is the list slice of the feed screen.
type FeedState struct {
	Posts   []models.Post
	Loading bool
	Err     string
	Notice  string
}

// DetailState is the single-post slice. It is a separate subscription
// from the feed list, so the two may transiently disagree.
type DetailState struct {
	Post      models.Post
	Exists    bool
	Comments  []models.Comment
	Liked     bool
	Favorited bool
	Loading   bool
	Err       string
	Notice    string
}

// ComposerState is the post create/edit slice.
type ComposerState struct {
	Open   bool
	Saving bool
	Err    string
}

// Feed manages the feed view state: the list, the open detail, the
// composer, and a per-post like/favorite map for list rows.
type Feed struct {
	repo repository.FeedRepository
	ids  identity.Provider
	log  *slog.Logger

	mu        sync.Mutex
	feed      FeedState
	detail    DetailState
	detailID  string
	composer  ComposerState
	likes     map[string]bool
	favorites map[string]bool

	feedSub    subscription
	detailSub  subscription
	trackSubs  map[string]context.CancelFunc
	updates    chan struct{}
}

// NewFeed creates a feed view-state manager.
func NewFeed(repo repository.FeedRepository, ids identity.Provider, log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		repo:      repo,
		ids:       ids,
		log:       log,
		likes:     make(map[string]bool),
		favorites: make(map[string]bool),
		trackSubs: make(map[string]context.CancelFunc),
		updates:   make(chan struct{}, 1),
	}
}

// Updates signals after every state change; emissions coalesce.
func (f *Feed) Updates() <-chan struct{} { return f.updates }

func (f *Feed) signal() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}

// FeedSnapshot returns a copy of the feed list slice.
func (f *Feed) FeedSnapshot() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.feed
	s.Posts = append([]models.Post(nil), f.feed.Posts...)
	return s
}

// DetailSnapshot returns a copy of the detail slice.
func (f *Feed) DetailSnapshot() DetailState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.detail
	s.Comments = append([]models.Comment(nil), f.detail.Comments...)
	return s
}

// ComposerSnapshot returns the composer slice.
func (f *Feed) ComposerSnapshot() ComposerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.composer
}

// Liked reports the per-post like flag for list rows.
func (f *Feed) Liked(postID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[postID]
}

// Favorited reports the per-post favorite flag for list rows.
func (f *Feed) Favorited(postID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.favorites[postID]
}

// LoadFeed subscribes to the ranked feed window. A repeated call
// supersedes the previous subscription: the latest one wins.
func (f *Feed) LoadFeed(ctx context.Context) error {
	viewerID, _ := f.ids.CurrentUserID(ctx)
	return f.loadList(ctx, func(ctx context.Context) (<-chan []models.Post, error) {
		return f.repo.Posts(ctx, viewerID)
	})
}

// LoadUserPosts subscribes the list slice to one author's posts.
func (f *Feed) LoadUserPosts(ctx context.Context, userID string) error {
	return f.loadList(ctx, func(ctx context.Context) (<-chan []models.Post, error) {
		return f.repo.UserPosts(ctx, userID)
	})
}

// LoadFavorites subscribes the list slice to the viewer's favorites.
func (f *Feed) LoadFavorites(ctx context.Context) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.fail(models.NewPermissionError("sign in to see favorites"))
	}
	return f.loadList(ctx, func(ctx context.Context) (<-chan []models.Post, error) {
		return f.repo.FavoritePosts(ctx, userID)
	})
}

func (f *Feed) loadList(ctx context.Context, open func(context.Context) (<-chan []models.Post, error)) error {
	f.mu.Lock()
	subCtx, gen := f.feedSub.next(ctx)
	f.feed.Loading = true
	f.feed.Err = ""
	f.mu.Unlock()
	f.signal()

	ch, err := open(subCtx)
	if err != nil {
		return f.failList(gen, err)
	}
	go func() {
		for posts := range ch {
			f.mu.Lock()
			if f.feedSub.gen != gen {
				f.mu.Unlock()
				return
			}
			f.feed.Posts = posts
			f.feed.Loading = false
			f.feed.Err = ""
			f.mu.Unlock()
			f.signal()
		}
	}()
	return nil
}

func (f *Feed) fail(err error) error {
	f.mu.Lock()
	f.feed.Loading = false
	f.feed.Err = err.Error()
	f.mu.Unlock()
	f.signal()
	return err
}

// failList stamps a load error only while its subscription is still the
// current one; a superseded load must not touch the newer slice.
func (f *Feed) failList(gen uint64, err error) error {
	f.mu.Lock()
	if f.feedSub.gen == gen {
		f.feed.Loading = false
		f.feed.Err = err.Error()
	}
	f.mu.Unlock()
	f.signal()
	return err
}

// OpenPost subscribes the detail slice to one post, its comments, and
// the viewer's like/favorite state for it.
func (f *Feed) OpenPost(ctx context.Context, postID string) error {
	userID, _ := f.ids.CurrentUserID(ctx)

	f.mu.Lock()
	subCtx, gen := f.detailSub.next(ctx)
	f.detailID = postID
	f.detail = DetailState{Loading: true}
	f.mu.Unlock()
	f.signal()

	postCh, err := f.repo.PostByID(subCtx, postID)
	if err != nil {
		return f.failDetail(gen, err)
	}
	commentCh, err := f.repo.Comments(subCtx, postID)
	if err != nil {
		return f.failDetail(gen, err)
	}

	go func() {
		for snap := range postCh {
			f.mu.Lock()
			if f.detailSub.gen != gen {
				f.mu.Unlock()
				return
			}
			f.detail.Post = snap.Post
			f.detail.Exists = snap.Exists
			f.detail.Loading = false
			f.mu.Unlock()
			f.signal()
		}
	}()
	go func() {
		for comments := range commentCh {
			f.mu.Lock()
			if f.detailSub.gen != gen {
				f.mu.Unlock()
				return
			}
			f.detail.Comments = comments
			f.mu.Unlock()
			f.signal()
		}
	}()

	if userID != "" {
		likedCh, err := f.repo.PostLiked(subCtx, postID, userID)
		if err != nil {
			return f.failDetail(gen, err)
		}
		favCh, err := f.repo.PostFavorited(subCtx, postID, userID)
		if err != nil {
			return f.failDetail(gen, err)
		}
		go func() {
			for liked := range likedCh {
				f.mu.Lock()
				if f.detailSub.gen != gen {
					f.mu.Unlock()
					return
				}
				f.detail.Liked = liked
				f.likes[postID] = liked
				f.mu.Unlock()
				f.signal()
			}
		}()
		go func() {
			for fav := range favCh {
				f.mu.Lock()
				if f.detailSub.gen != gen {
					f.mu.Unlock()
					return
				}
				f.detail.Favorited = fav
				f.favorites[postID] = fav
				f.mu.Unlock()
				f.signal()
			}
		}()
	}
	return nil
}

func (f *Feed) failDetail(gen uint64, err error) error {
	f.mu.Lock()
	if f.detailSub.gen == gen {
		f.detail.Loading = false
		f.detail.Err = err.Error()
	}
	f.mu.Unlock()
	f.signal()
	return err
}

// ClosePost releases the detail subscriptions and clears the slice.
func (f *Feed) ClosePost() {
	f.mu.Lock()
	f.detailSub.stop()
	f.detailID = ""
	f.detail = DetailState{}
	f.mu.Unlock()
	f.signal()
}

// TrackLikes keeps the per-post like and favorite flags of a list row
// live for the signed-in viewer.
func (f *Feed) TrackLikes(ctx context.Context, postID string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return nil
	}
	trackCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if prev, ok := f.trackSubs[postID]; ok {
		prev()
	}
	f.trackSubs[postID] = cancel
	f.mu.Unlock()

	likedCh, err := f.repo.PostLiked(trackCtx, postID, userID)
	if err != nil {
		cancel()
		return err
	}
	favCh, err := f.repo.PostFavorited(trackCtx, postID, userID)
	if err != nil {
		cancel()
		return err
	}
	go func() {
		for liked := range likedCh {
			f.mu.Lock()
			f.likes[postID] = liked
			if f.detailID == postID {
				f.detail.Liked = liked
			}
			f.mu.Unlock()
			f.signal()
		}
	}()
	go func() {
		for fav := range favCh {
			f.mu.Lock()
			f.favorites[postID] = fav
			if f.detailID == postID {
				f.detail.Favorited = fav
			}
			f.mu.Unlock()
			f.signal()
		}
	}()
	return nil
}

// ToggleLike flips the like flag optimistically, then issues the
// repository call. On failure the flip rolls back and the error message
// lands on the authoritative slice.
func (f *Feed) ToggleLike(ctx context.Context, postID string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.toggleErr(postID, models.NewPermissionError("sign in to like posts"))
	}

	f.mu.Lock()
	var was bool
	if f.detailID == postID {
		was = f.detail.Liked
	} else {
		was = f.likes[postID]
	}
	f.likes[postID] = !was
	if f.detailID == postID {
		f.detail.Liked = !was
	}
	f.mu.Unlock()
	f.signal()

	var err error
	if was {
		err = f.repo.UnlikePost(ctx, postID, userID)
	} else {
		err = f.repo.LikePost(ctx, postID, userID)
	}
	if err != nil {
		f.mu.Lock()
		f.likes[postID] = was
		if f.detailID == postID {
			f.detail.Liked = was
		}
		f.mu.Unlock()
		return f.toggleErr(postID, err)
	}
	return nil
}

// ToggleFavorite mirrors ToggleLike for the favorite flag.
func (f *Feed) ToggleFavorite(ctx context.Context, postID string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.toggleErr(postID, models.NewPermissionError("sign in to save favorites"))
	}

	f.mu.Lock()
	var was bool
	if f.detailID == postID {
		was = f.detail.Favorited
	} else {
		was = f.favorites[postID]
	}
	f.favorites[postID] = !was
	if f.detailID == postID {
		f.detail.Favorited = !was
	}
	f.mu.Unlock()
	f.signal()

	var err error
	if was {
		err = f.repo.UnfavoritePost(ctx, postID, userID)
	} else {
		err = f.repo.FavoritePost(ctx, postID, userID)
	}
	if err != nil {
		f.mu.Lock()
		f.favorites[postID] = was
		if f.detailID == postID {
			f.detail.Favorited = was
		}
		f.mu.Unlock()
		return f.toggleErr(postID, err)
	}
	return nil
}

func (f *Feed) toggleErr(postID string, err error) error {
	f.mu.Lock()
	if f.detailID == postID {
		f.detail.Err = err.Error()
	} else {
		f.feed.Err = err.Error()
	}
	f.mu.Unlock()
	f.signal()
	return err
}

// OpenComposer opens the post composer.
func (f *Feed) OpenComposer() {
	f.mu.Lock()
	f.composer = ComposerState{Open: true}
	f.mu.Unlock()
	f.signal()
}

// CloseComposer discards the composer slice.
func (f *Feed) CloseComposer() {
	f.mu.Lock()
	f.composer = ComposerState{}
	f.mu.Unlock()
	f.signal()
}

// SubmitPost validates the draft, normalizes the free-text tag string,
// creates the post and reloads the feed. Validation failures never reach
// the repository.
func (f *Feed) SubmitPost(ctx context.Context, content, rawTags, location string, images []models.ImageUpload) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.composerErr(models.NewPermissionError("sign in to post"))
	}
	if strings.TrimSpace(content) == "" && len(images) == 0 {
		return f.composerErr(models.NewValidationError("a post needs text or at least one image"))
	}

	f.mu.Lock()
	f.composer.Saving = true
	f.composer.Err = ""
	f.mu.Unlock()
	f.signal()

	draft := models.PostDraft{
		AuthorID: userID,
		Content:  content,
		Tags:     models.NormalizeTags(rawTags),
		Location: location,
		Images:   images,
	}
	if _, err := f.repo.CreatePost(ctx, draft); err != nil {
		return f.composerErr(err)
	}

	f.CloseComposer()
	return f.LoadFeed(ctx)
}

// SavePost validates and applies an edit to an existing post, then
// reloads the feed.
func (f *Feed) SavePost(ctx context.Context, post models.Post, rawTags string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.composerErr(models.NewPermissionError("sign in to edit posts"))
	}
	if strings.TrimSpace(post.Content) == "" && len(post.ImageURLs) == 0 {
		return f.composerErr(models.NewValidationError("a post needs text or at least one image"))
	}
	post.Tags = models.NormalizeTags(rawTags)

	f.mu.Lock()
	f.composer.Saving = true
	f.composer.Err = ""
	f.mu.Unlock()
	f.signal()

	if err := f.repo.UpdatePost(ctx, userID, post); err != nil {
		return f.composerErr(err)
	}
	f.CloseComposer()
	return f.LoadFeed(ctx)
}

func (f *Feed) composerErr(err error) error {
	f.mu.Lock()
	f.composer.Saving = false
	f.composer.Err = err.Error()
	f.mu.Unlock()
	f.signal()
	return err
}

// DeletePost deletes a post; when it was the open detail, the detail
// slice clears and surfaces a success message instead of an error.
func (f *Feed) DeletePost(ctx context.Context, postID string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.toggleErr(postID, models.NewPermissionError("sign in to delete posts"))
	}
	if err := f.repo.DeletePost(ctx, userID, postID); err != nil {
		return f.toggleErr(postID, err)
	}

	f.mu.Lock()
	if f.detailID == postID {
		f.detailSub.stop()
		f.detailID = ""
		f.detail = DetailState{Notice: "Post deleted"}
	} else {
		f.feed.Notice = "Post deleted"
	}
	f.mu.Unlock()
	f.signal()
	return nil
}

// AddComment posts a comment on the open detail.
func (f *Feed) AddComment(ctx context.Context, text string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.detailErr(models.NewPermissionError("sign in to comment"))
	}
	if strings.TrimSpace(text) == "" {
		return f.detailErr(models.NewValidationError("a comment needs text"))
	}
	f.mu.Lock()
	postID := f.detailID
	f.mu.Unlock()
	if postID == "" {
		return f.detailErr(models.NewValidationError("no post open"))
	}
	if _, err := f.repo.AddComment(ctx, userID, postID, text); err != nil {
		return f.detailErr(err)
	}
	return nil
}

// DeleteComment removes a comment from the open detail.
func (f *Feed) DeleteComment(ctx context.Context, commentID string) error {
	userID, ok := f.ids.CurrentUserID(ctx)
	if !ok {
		return f.detailErr(models.NewPermissionError("sign in to delete comments"))
	}
	if err := f.repo.DeleteComment(ctx, userID, commentID); err != nil {
		return f.detailErr(err)
	}
	return nil
}

func (f *Feed) detailErr(err error) error {
	f.mu.Lock()
	f.detail.Err = err.Error()
	f.mu.Unlock()
	f.signal()
	return err
}

// Close releases every live subscription held by the manager.
func (f *Feed) Close() {
	f.mu.Lock()
	f.feedSub.stop()
	f.detailSub.stop()
	for _, cancel := range f.trackSubs {
		cancel()
	}
	f.trackSubs = make(map[string]context.CancelFunc)
	f.mu.Unlock()
}
