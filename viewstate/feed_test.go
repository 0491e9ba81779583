package viewstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/blob"
	"agora/identity"
	"agora/models"
	"agora/repository"
	"agora/store"
	"agora/store/redisstore"
)

const (
	viewerID = "viewer"
	adminID  = "admin"
)

type harness struct {
	store  store.Client
	feed   repository.FeedRepository
	market repository.MarketRepository
}

func setup(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := redisstore.New(rdb, redisstore.WithPrefix("test"))
	blobs := blob.NewMemory()
	authz := identity.AdminList{adminID}
	return &harness{
		store:  st,
		feed:   repository.NewFeedRepository(st, blobs, authz, 0, nil),
		market: repository.NewMarketRepository(st, blobs, authz, nil),
	}
}

func (h *harness) seedUser(t *testing.T, id, name string) models.User {
	t.Helper()
	user := models.User{ID: id, Username: name, CreatedAt: time.Now().UTC()}
	data, err := store.DataFrom(user)
	require.NoError(t, err)
	doc := store.Doc{Collection: models.ColUsers, ID: id}
	require.NoError(t, h.store.Set(context.Background(), doc, data))
	return user
}

func (h *harness) seedPost(t *testing.T, id, authorID string, at time.Time) {
	t.Helper()
	post := models.Post{ID: id, AuthorID: authorID, Content: "post " + id, CreatedAt: at, LastModifiedAt: at}
	data, err := store.DataFrom(post)
	require.NoError(t, err)
	doc := store.Doc{Collection: models.ColPosts, ID: id}
	require.NoError(t, h.store.Set(context.Background(), doc, data))
}

func (h *harness) postDoc(t *testing.T, id string) (models.Post, bool) {
	t.Helper()
	snap, err := h.store.Get(context.Background(), store.Doc{Collection: models.ColPosts, ID: id})
	require.NoError(t, err)
	if !snap.Exists {
		return models.Post{}, false
	}
	var p models.Post
	require.NoError(t, snap.DataTo(&p))
	return p, true
}

func newFeedManager(h *harness, user string) *Feed {
	return NewFeed(h.feed, identity.Static(user), nil)
}

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func TestToggleLikeOptimistic(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")
	h.seedPost(t, "p1", "author", time.Now().UTC())

	f := newFeedManager(h, viewerID)
	defer f.Close()

	require.NoError(t, f.ToggleLike(ctx, "p1"))
	assert.True(t, f.Liked("p1"), "flag flips immediately")

	post, _ := h.postDoc(t, "p1")
	assert.Equal(t, int64(1), post.LikeCount)

	require.NoError(t, f.ToggleLike(ctx, "p1"))
	assert.False(t, f.Liked("p1"))
	post, _ = h.postDoc(t, "p1")
	assert.Equal(t, int64(0), post.LikeCount)
}

func TestToggleLikeRollsBackOnFailure(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")

	f := newFeedManager(h, viewerID)
	defer f.Close()

	err := f.ToggleLike(ctx, "no-such-post")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
	assert.False(t, f.Liked("no-such-post"), "optimistic flip rolled back")
	assert.NotEmpty(t, f.FeedSnapshot().Err, "failure surfaces as a message")
}

func TestToggleLikeSignedOut(t *testing.T) {
	h := setup(t)
	h.seedPost(t, "p1", "author", time.Now().UTC())

	f := newFeedManager(h, "")
	defer f.Close()

	err := f.ToggleLike(context.Background(), "p1")
	assert.True(t, models.IsPermissionDenied(err))
	assert.False(t, f.Liked("p1"))
	post, _ := h.postDoc(t, "p1")
	assert.Equal(t, int64(0), post.LikeCount, "nothing reaches the store")
}

func TestLatestListSubscriptionWins(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h.seedPost(t, "a1", "alice", base)
	h.seedPost(t, "b1", "bob", base.Add(time.Minute))

	f := newFeedManager(h, viewerID)
	defer f.Close()

	require.NoError(t, f.LoadUserPosts(ctx, "alice"))
	require.NoError(t, f.LoadUserPosts(ctx, "bob"))

	require.Eventually(t, func() bool {
		posts := f.FeedSnapshot().Posts
		return len(posts) == 1 && posts[0].ID == "b1"
	}, waitFor, tick)

	// A new post by alice re-triggers her now-superseded subscription;
	// the visible slice must not regress to it.
	h.seedPost(t, "a2", "alice", base.Add(2*time.Minute))
	h.seedPost(t, "b2", "bob", base.Add(3*time.Minute))

	require.Eventually(t, func() bool {
		return len(f.FeedSnapshot().Posts) == 2
	}, waitFor, tick)
	for _, p := range f.FeedSnapshot().Posts {
		assert.Equal(t, "bob", p.AuthorID)
	}
}

func TestSupersededLoadErrorDoesNotStampNewerSlice(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedPost(t, "b1", "bob", time.Now().UTC())

	f := newFeedManager(h, viewerID)
	defer f.Close()

	require.NoError(t, f.LoadUserPosts(ctx, "alice"))
	f.mu.Lock()
	staleGen := f.feedSub.gen
	f.mu.Unlock()

	require.NoError(t, f.LoadUserPosts(ctx, "bob"))
	require.Eventually(t, func() bool {
		s := f.FeedSnapshot()
		return !s.Loading && len(s.Posts) == 1
	}, waitFor, tick)

	err := f.failList(staleGen, assert.AnError)
	assert.ErrorIs(t, err, assert.AnError, "the failed load still reports its error to its caller")
	s := f.FeedSnapshot()
	assert.Empty(t, s.Err, "a superseded load cannot stamp the newer slice")
	assert.False(t, s.Loading)

	// The current subscription's failure still surfaces.
	f.mu.Lock()
	currentGen := f.feedSub.gen
	f.mu.Unlock()
	_ = f.failList(currentGen, assert.AnError)
	assert.NotEmpty(t, f.FeedSnapshot().Err)
}

func TestSubmitPostValidation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")

	f := newFeedManager(h, viewerID)
	defer f.Close()
	f.OpenComposer()

	err := f.SubmitPost(ctx, "   ", "", "", nil)
	assert.True(t, models.IsValidation(err))
	assert.NotEmpty(t, f.ComposerSnapshot().Err)
	assert.True(t, f.ComposerSnapshot().Open, "composer stays open for correction")

	snaps, err := h.store.Documents(ctx, store.NewQuery(models.ColPosts))
	require.NoError(t, err)
	assert.Empty(t, snaps, "invalid draft never reaches the store")
}

func TestSubmitPostCreatesAndCloses(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")

	f := newFeedManager(h, viewerID)
	defer f.Close()
	f.OpenComposer()

	require.NoError(t, f.SubmitPost(ctx, "hello world", "dog, cat #fun", "Oslo", nil))
	assert.False(t, f.ComposerSnapshot().Open)

	snaps, err := h.store.Documents(ctx, store.NewQuery(models.ColPosts))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	var p models.Post
	require.NoError(t, snaps[0].DataTo(&p))
	assert.Equal(t, []string{"#dog", "#cat", "#fun"}, p.Tags)

	require.Eventually(t, func() bool {
		return len(f.FeedSnapshot().Posts) == 1
	}, waitFor, tick, "feed reloads after submit")
}

func TestOpenPostDetail(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")
	h.seedUser(t, "author", "author")
	h.seedPost(t, "p1", "author", time.Now().UTC())

	f := newFeedManager(h, viewerID)
	defer f.Close()

	require.NoError(t, f.OpenPost(ctx, "p1"))
	require.Eventually(t, func() bool {
		d := f.DetailSnapshot()
		return d.Exists && d.Post.ID == "p1" && !d.Loading
	}, waitFor, tick)

	require.NoError(t, f.AddComment(ctx, "great"))
	require.Eventually(t, func() bool {
		return len(f.DetailSnapshot().Comments) == 1
	}, waitFor, tick)

	require.NoError(t, f.ToggleLike(ctx, "p1"))
	require.Eventually(t, func() bool {
		return f.DetailSnapshot().Liked
	}, waitFor, tick)
}

func TestAddCommentValidation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")
	h.seedPost(t, "p1", "author", time.Now().UTC())

	f := newFeedManager(h, viewerID)
	defer f.Close()

	t.Run("NoPostOpen", func(t *testing.T) {
		err := f.AddComment(ctx, "hi")
		assert.True(t, models.IsValidation(err))
	})

	t.Run("BlankText", func(t *testing.T) {
		require.NoError(t, f.OpenPost(ctx, "p1"))
		err := f.AddComment(ctx, "  ")
		assert.True(t, models.IsValidation(err))
	})
}

func TestDeletePostClearsOpenDetail(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")
	h.seedPost(t, "p1", viewerID, time.Now().UTC())

	f := newFeedManager(h, viewerID)
	defer f.Close()

	require.NoError(t, f.OpenPost(ctx, "p1"))
	require.Eventually(t, func() bool { return f.DetailSnapshot().Exists }, waitFor, tick)

	require.NoError(t, f.DeletePost(ctx, "p1"))

	d := f.DetailSnapshot()
	assert.False(t, d.Exists)
	assert.Empty(t, d.Err)
	assert.Equal(t, "Post deleted", d.Notice, "deleting the open post reads as success, not an error")

	_, exists := h.postDoc(t, "p1")
	assert.False(t, exists)
}

func TestDeletePostDenied(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seedUser(t, viewerID, "viewer")
	h.seedPost(t, "p1", "someone-else", time.Now().UTC())

	f := newFeedManager(h, viewerID)
	defer f.Close()

	err := f.DeletePost(ctx, "p1")
	assert.True(t, models.IsPermissionDenied(err))
	_, exists := h.postDoc(t, "p1")
	assert.True(t, exists)
}

func TestLoadFavoritesRequiresSignIn(t *testing.T) {
	h := setup(t)
	f := newFeedManager(h, "")
	defer f.Close()

	err := f.LoadFavorites(context.Background())
	assert.True(t, models.IsPermissionDenied(err))
	assert.NotEmpty(t, f.FeedSnapshot().Err)
}

func TestUpdatesCoalesce(t *testing.T) {
	h := setup(t)
	h.seedUser(t, viewerID, "viewer")

	f := newFeedManager(h, viewerID)
	defer f.Close()

	// Many state changes while nobody drains the channel must not block.
	for i := 0; i < 10; i++ {
		f.OpenComposer()
		f.CloseComposer()
	}
	select {
	case <-f.Updates():
	default:
		t.Fatal("expected a pending update signal")
	}
}
