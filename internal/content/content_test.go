package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ButyrinIA/socials/internal/access"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/permit"
	"github.com/ButyrinIA/socials/internal/realtime"
	"github.com/ButyrinIA/socials/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Allowed(ctx context.Context, userID string, action models.Action) bool {
	return m.Called(ctx, userID, action).Bool(0)
}

// spyStore считает вызовы записи поверх хранилища в памяти
type spyStore struct {
	*memory.MemoryStorage
	createPosts atomic.Int32
	failLists   bool
}

func (s *spyStore) CreatePost(ctx context.Context, post *models.Post) error {
	s.createPosts.Add(1)
	return s.MemoryStorage.CreatePost(ctx, post)
}

func (s *spyStore) ListPosts(ctx context.Context, limit int, cursor *models.PostCursor) (*models.PaginatedPosts, error) {
	if s.failLists {
		return nil, errors.New("connection refused")
	}
	return s.MemoryStorage.ListPosts(ctx, limit, cursor)
}

func (s *spyStore) ListPostsByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	if s.failLists {
		return nil, errors.New("connection refused")
	}
	return s.MemoryStorage.ListPostsByOwner(ctx, ownerID)
}

var (
	alice = models.Identity{ID: "aaaaaaaa-1111-4111-8111-111111111111", Email: "alice@example.com"}
	bob   = models.Identity{ID: "bbbbbbbb-2222-4222-8222-222222222222", Email: "bob@example.com"}
)

type fixture struct {
	store    *spyStore
	auth     *mockAuth
	hub      *realtime.Hub
	svc      *Service
	resolver *access.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &spyStore{MemoryStorage: memory.New()}
	ctx := context.Background()
	require.NoError(t, store.UpsertProfile(ctx, &models.Profile{ID: alice.ID, FullName: "Alice Owner", Email: alice.Email}))
	require.NoError(t, store.UpsertProfile(ctx, &models.Profile{ID: bob.ID, FullName: "Bob Manager", Email: bob.Email}))

	auth := &mockAuth{}
	hub := realtime.NewHub()
	return &fixture{
		store:    store,
		auth:     auth,
		hub:      hub,
		svc:      NewService(store, auth, hub, zap.NewNop()),
		resolver: access.NewResolver(store, store, zap.NewNop()),
	}
}

func (f *fixture) allowAll() {
	f.auth.On("Allowed", mock.Anything, mock.Anything, mock.Anything).Return(true)
}

func TestCreatePost_ManagerActsForOwner(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	ctx := context.Background()

	own, err := f.resolver.Resolve(ctx, alice, "")
	require.NoError(t, err)
	first, err := f.svc.CreatePost(ctx, own, "Hello from Alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, first.UserID)
	assert.Equal(t, alice.ID, first.OwnerID)

	_, err = f.resolver.GrantManager(ctx, alice, bob.Email, "")
	require.NoError(t, err)

	managed, err := f.resolver.Resolve(ctx, bob, alice.ID)
	require.NoError(t, err)
	require.True(t, managed.ManagerMode)

	second, err := f.svc.CreatePost(ctx, managed, "  Scheduled update  ")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, second.UserID)
	assert.Equal(t, alice.ID, second.OwnerID)
	assert.Equal(t, "Scheduled update", second.Content)

	posts := f.svc.AccountPosts(ctx, own)
	require.Len(t, posts, 2)
	byID := map[string]PostView{}
	for _, p := range posts {
		byID[p.ID] = p
	}
	assert.Equal(t, "Alice Owner", byID[second.ID].DisplayName)
	assert.Equal(t, "Bob Manager", byID[second.ID].PostedBy)
	assert.Empty(t, byID[first.ID].PostedBy)

	f.auth.AssertCalled(t, "Allowed", mock.Anything, bob.ID, models.ActionCreate)
}

func TestCreatePost_PolicyFailureBlocksWrite(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			w.Write([]byte(`{"permitted": true}`))
		}},
		{"denied", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"permitted": false}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			store := &spyStore{MemoryStorage: memory.New()}
			gate := permit.NewGate(permit.NewClient(srv.URL, 50*time.Millisecond), "SocialsDashboard", zap.NewNop())
			svc := NewService(store, gate, realtime.NewHub(), zap.NewNop())

			scope := &access.Scope{Identity: alice, AccountID: alice.ID}
			_, err := svc.CreatePost(context.Background(), scope, "Hello")
			assert.ErrorIs(t, err, ErrNotPermitted)
			assert.Zero(t, store.createPosts.Load(), "запись не должна выполняться")
		})
	}
}

func TestCreatePost_EmptyContent(t *testing.T) {
	f := newFixture(t)
	scope := &access.Scope{Identity: alice, AccountID: alice.ID}

	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.CreatePost(context.Background(), scope, body)
		assert.ErrorIs(t, err, ErrEmptyContent, body)
	}
	f.auth.AssertNotCalled(t, "Allowed", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.store.createPosts.Load())
}

func TestCreatePost_SanitizesAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := f.hub.Subscribe(ctx, realtime.PostsTopic(alice.ID))
	scope := &access.Scope{Identity: alice, AccountID: alice.ID}
	post, err := f.svc.CreatePost(ctx, scope, `<b>Launch</b><script>steal()</script>`)
	require.NoError(t, err)
	assert.Equal(t, `<b>Launch</b><script>steal()</script>`, post.Content)

	views := f.svc.AccountPosts(ctx, scope)
	require.Len(t, views, 1)
	assert.Equal(t, "<b>Launch</b>", views[0].ContentHTML)

	select {
	case ev := <-events:
		assert.Equal(t, realtime.KindPostCreated, ev.Kind)
		assert.Equal(t, post.ID, ev.PostID)
	case <-time.After(time.Second):
		t.Fatal("событие не получено")
	}
}

func TestCreatePost_KeepsPlainTextIntact(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	ctx := context.Background()
	scope := &access.Scope{Identity: alice, AccountID: alice.ID}

	text := `Tom & Jerry say "2 < 3"`
	post, err := f.svc.CreatePost(ctx, scope, "  "+text+"  ")
	require.NoError(t, err)
	assert.Equal(t, text, post.Content)

	markupOnly, err := f.svc.CreatePost(ctx, scope, "<script>x</script>")
	require.NoError(t, err, "непустой после обрезки текст принимается")

	byID := map[string]PostView{}
	for _, v := range f.svc.AccountPosts(ctx, scope) {
		byID[v.ID] = v
	}
	require.Len(t, byID, 2)
	assert.Equal(t, text, byID[post.ID].Content)
	assert.Equal(t, "Tom &amp; Jerry say &#34;2 &lt; 3&#34;", byID[post.ID].ContentHTML)
	assert.Equal(t, "<script>x</script>", byID[markupOnly.ID].Content)
	assert.Empty(t, byID[markupOnly.ID].ContentHTML)

	comment, err := f.svc.CreateComment(ctx, scope, post.ID, nil, "a < b & c")
	require.NoError(t, err)
	assert.Equal(t, "a < b & c", comment.Content)

	detail, err := f.svc.PostDetail(ctx, scope, post.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "a < b & c", detail.Comments[0].Content)
	assert.Equal(t, "a &lt; b &amp; c", detail.Comments[0].ContentHTML)
}

func TestFeed_PagesThroughEqualTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	at := time.Now()
	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, f.store.MemoryStorage.CreatePost(ctx, &models.Post{
			ID: id, UserID: alice.ID, OwnerID: alice.ID, Content: "Post", CreatedAt: at,
		}))
	}

	var seen []string
	var cursor *models.PostCursor
	for {
		page := f.svc.Feed(ctx, 1, cursor)
		for _, p := range page.Posts {
			seen = append(seen, p.ID)
		}
		if page.NextCursor == nil {
			break
		}
		var err error
		cursor, err = models.ParsePostCursor(*page.NextCursor)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"p3", "p2", "p1"}, seen)
}

func TestCreateComment(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	ctx := context.Background()
	scope := &access.Scope{Identity: alice, AccountID: alice.ID}

	post, err := f.svc.CreatePost(ctx, scope, "Post")
	require.NoError(t, err)
	other, err := f.svc.CreatePost(ctx, scope, "Other post")
	require.NoError(t, err)

	top, err := f.svc.CreateComment(ctx, scope, post.ID, nil, "Top level")
	require.NoError(t, err)
	assert.Nil(t, top.ParentCommentID)

	reply, err := f.svc.CreateComment(ctx, scope, post.ID, &top.ID, "Reply")
	require.NoError(t, err)
	assert.Equal(t, top.ID, *reply.ParentCommentID)

	t.Run("reply to reply", func(t *testing.T) {
		_, err := f.svc.CreateComment(ctx, scope, post.ID, &reply.ID, "Nested")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("parent on another post", func(t *testing.T) {
		_, err := f.svc.CreateComment(ctx, scope, other.ID, &top.ID, "Wrong post")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("missing parent", func(t *testing.T) {
		missing := "missing"
		_, err := f.svc.CreateComment(ctx, scope, post.ID, &missing, "Lost")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := f.svc.CreateComment(ctx, scope, "missing", nil, "Lost")
		assert.ErrorIs(t, err, ErrPostNotFound)
	})
}

func TestCreateComment_NotPermitted(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Allowed", mock.Anything, alice.ID, models.ActionCreate).Return(true)
	f.auth.On("Allowed", mock.Anything, alice.ID, models.ActionComment).Return(false)
	ctx := context.Background()
	scope := &access.Scope{Identity: alice, AccountID: alice.ID}

	post, err := f.svc.CreatePost(ctx, scope, "Post")
	require.NoError(t, err)

	_, err = f.svc.CreateComment(ctx, scope, post.ID, nil, "Hi")
	assert.ErrorIs(t, err, ErrNotPermitted)

	comments, err := f.store.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestPostDetail(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	ctx := context.Background()

	own, err := f.resolver.Resolve(ctx, alice, "")
	require.NoError(t, err)
	post, err := f.svc.CreatePost(ctx, own, "Post")
	require.NoError(t, err)

	stranger := "cccccccc-3333-4333-8333-333333333333"
	top, err := f.svc.CreateComment(ctx, &access.Scope{Identity: models.Identity{ID: stranger}, AccountID: stranger}, post.ID, nil, "Question")
	require.NoError(t, err)

	_, err = f.resolver.GrantManager(ctx, alice, bob.Email, "")
	require.NoError(t, err)
	managed, err := f.resolver.Resolve(ctx, bob, alice.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateComment(ctx, managed, post.ID, &top.ID, "Answer")
	require.NoError(t, err)

	lost := "dddddddd-4444-4444-8444-444444444444"
	require.NoError(t, f.store.CreateComment(ctx, &models.Comment{
		ID: "orphan", PostID: post.ID, UserID: alice.ID, OwnerID: alice.ID,
		Content: "Orphan", ParentCommentID: &lost, CreatedAt: time.Now(),
	}))

	t.Run("manager view", func(t *testing.T) {
		detail, err := f.svc.PostDetail(ctx, managed, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice Owner", detail.Post.DisplayName)
		assert.Equal(t, 3, detail.Post.CommentCount)

		require.Len(t, detail.Comments, 1, "сирота должна быть отброшена")
		c := detail.Comments[0]
		assert.Equal(t, "Anonymous (User ID: cccccccc...)", c.DisplayName)
		require.Len(t, c.Replies, 1)
		assert.Equal(t, "Alice Owner", c.Replies[0].DisplayName)
		assert.Equal(t, "Bob Manager", c.Replies[0].PostedBy)
		assert.Equal(t, bob.ID, c.Replies[0].UserID)
	})

	t.Run("owner view", func(t *testing.T) {
		detail, err := f.svc.PostDetail(ctx, own, post.ID)
		require.NoError(t, err)
		require.Len(t, detail.Comments, 1)
		require.Len(t, detail.Comments[0].Replies, 1)
		assert.Equal(t, "Bob Manager", detail.Comments[0].Replies[0].DisplayName)
		assert.Empty(t, detail.Comments[0].Replies[0].PostedBy)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.PostDetail(ctx, own, "missing")
		assert.ErrorIs(t, err, ErrPostNotFound)
	})
}

func TestFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost := "eeeeeeee-5555-4555-8555-555555555555"
	base := time.Now().Add(-time.Hour)
	for i, owner := range []string{alice.ID, ghost, alice.ID} {
		require.NoError(t, f.store.MemoryStorage.CreatePost(ctx, &models.Post{
			ID: string(rune('a' + i)), UserID: owner, OwnerID: owner,
			Content: "Post", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page := f.svc.Feed(ctx, 2, nil)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, 3, page.TotalCount)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "c", page.Posts[0].ID)
	assert.Equal(t, "Account (eeeeeeee...)", page.Posts[1].DisplayName)
	assert.Nil(t, page.Posts[1].Owner)

	t.Run("storage failure gives empty page", func(t *testing.T) {
		f.store.failLists = true
		defer func() { f.store.failLists = false }()

		page := f.svc.Feed(ctx, 0, nil)
		assert.Empty(t, page.Posts)
		assert.Empty(t, f.svc.AccountPosts(ctx, &access.Scope{AccountID: alice.ID}))
	})
}
