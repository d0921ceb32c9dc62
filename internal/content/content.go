// Package content публикует посты и комментарии от имени аккаунта и
// собирает их представления для чтения.
package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ButyrinIA/socials/internal/access"
	"github.com/ButyrinIA/socials/internal/apperr"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/realtime"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/ButyrinIA/socials/internal/thread"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 100
)

var (
	ErrEmptyContent  = apperr.New(apperr.CodeInvalidArgument, "Content cannot be empty")
	ErrNotPermitted  = apperr.New(apperr.CodeForbidden, "You do not have permission to perform this action")
	ErrPostNotFound  = apperr.New(apperr.CodeNotFound, "Post not found")
	ErrInvalidParent = apperr.New(apperr.CodeInvalidArgument, "You can only reply to a top-level comment of this post")
	ErrWriteFailed   = apperr.New(apperr.CodeInternal, "Failed to save, please try again")
	ErrReadFailed    = apperr.New(apperr.CodeUnavailable, "Failed to load content")
)

// Store - хранилище, которое нужно сервису
type Store interface {
	storage.ContentStore
	storage.ProfileStore
}

// Authorizer отвечает на вопрос, разрешено ли действие. Ошибка проверки
// должна сворачиваться в false.
type Authorizer interface {
	Allowed(ctx context.Context, userID string, action models.Action) bool
}

type Publisher interface {
	Publish(topic string, ev realtime.Event)
}

type Service struct {
	store    Store
	auth     Authorizer
	events   Publisher
	sanitize *bluemonday.Policy
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, auth Authorizer, events Publisher, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		auth:     auth,
		events:   events,
		sanitize: bluemonday.UGCPolicy(),
		log:      log,
		now:      time.Now,
	}
}

// clean обрезает пробелы по краям; пустой результат - ErrEmptyContent.
// Текст хранится как ввел пользователь, разметка чистится при выдаче.
func clean(raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", ErrEmptyContent
	}
	return body, nil
}

// render возвращает HTML тела, безопасный для вставки в страницу
func (s *Service) render(body string) string {
	return s.sanitize.Sanitize(body)
}

// CreatePost пишет пост в аккаунт scope.AccountID. Автором остаётся
// пользователь scope.Identity, даже если он действует как менеджер.
func (s *Service) CreatePost(ctx context.Context, scope *access.Scope, raw string) (*models.Post, error) {
	body, err := clean(raw)
	if err != nil {
		return nil, err
	}
	if !s.auth.Allowed(ctx, scope.Identity.ID, models.ActionCreate) {
		return nil, ErrNotPermitted
	}

	post := &models.Post{
		ID:        uuid.New().String(),
		UserID:    scope.Identity.ID,
		OwnerID:   scope.AccountID,
		Content:   body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		apperr.Log(s.log, err, "create post failed",
			zap.String("user_id", post.UserID), zap.String("owner_id", post.OwnerID))
		return nil, apperr.Wrap(ErrWriteFailed, err)
	}

	s.log.Info("post created",
		zap.String("post_id", post.ID),
		zap.String("user_id", post.UserID),
		zap.String("owner_id", post.OwnerID),
		zap.Bool("manager_mode", scope.ManagerMode))
	s.events.Publish(realtime.PostsTopic(post.OwnerID), realtime.Event{
		Kind:    realtime.KindPostCreated,
		PostID:  post.ID,
		OwnerID: post.OwnerID,
	})
	return post, nil
}

// CreateComment добавляет комментарий или ответ к посту. parentID, если
// задан, должен указывать на комментарий верхнего уровня того же поста.
func (s *Service) CreateComment(ctx context.Context, scope *access.Scope, postID string, parentID *string, raw string) (*models.Comment, error) {
	body, err := clean(raw)
	if err != nil {
		return nil, err
	}
	if !s.auth.Allowed(ctx, scope.Identity.ID, models.ActionComment) {
		return nil, ErrNotPermitted
	}

	if _, err := s.store.GetPost(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, apperr.Wrap(ErrWriteFailed, err)
	}
	if parentID != nil {
		if err := s.checkParent(ctx, postID, *parentID); err != nil {
			return nil, err
		}
	}

	comment := &models.Comment{
		ID:              uuid.New().String(),
		PostID:          postID,
		UserID:          scope.Identity.ID,
		OwnerID:         scope.AccountID,
		Content:         body,
		ParentCommentID: parentID,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		apperr.Log(s.log, err, "create comment failed",
			zap.String("post_id", postID), zap.String("user_id", comment.UserID))
		return nil, apperr.Wrap(ErrWriteFailed, err)
	}

	s.log.Info("comment created",
		zap.String("comment_id", comment.ID),
		zap.String("post_id", postID),
		zap.String("user_id", comment.UserID),
		zap.String("owner_id", comment.OwnerID),
		zap.Bool("reply", parentID != nil))
	s.events.Publish(realtime.CommentsTopic(postID), realtime.Event{
		Kind:      realtime.KindCommentCreated,
		PostID:    postID,
		CommentID: comment.ID,
		OwnerID:   comment.OwnerID,
	})
	return comment, nil
}

func (s *Service) checkParent(ctx context.Context, postID, parentID string) error {
	parent, err := s.store.GetComment(ctx, parentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidParent
		}
		return apperr.Wrap(ErrWriteFailed, err)
	}
	if parent.PostID != postID || parent.ParentCommentID != nil {
		return ErrInvalidParent
	}
	return nil
}

// AccountPosts - посты аккаунта от новых к старым. Ошибка чтения
// логируется и даёт пустой список.
func (s *Service) AccountPosts(ctx context.Context, scope *access.Scope) []PostView {
	posts, err := s.store.ListPostsByOwner(ctx, scope.AccountID)
	if err != nil {
		s.log.Error("list account posts failed", zap.String("owner_id", scope.AccountID), zap.Error(err))
		return []PostView{}
	}
	return s.postViews(ctx, posts)
}

// Feed - общая лента всех аккаунтов с курсорной пагинацией
func (s *Service) Feed(ctx context.Context, limit int, cursor *models.PostCursor) *FeedPage {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	page, err := s.store.ListPosts(ctx, limit, cursor)
	if err != nil {
		s.log.Error("list feed failed", zap.Error(err))
		return &FeedPage{Posts: []PostView{}}
	}
	return &FeedPage{
		Posts:      s.postViews(ctx, page.Posts),
		TotalCount: page.TotalCount,
		NextCursor: page.NextCursor,
	}
}

func (s *Service) postViews(ctx context.Context, posts []*models.Post) []PostView {
	ids := make([]string, 0, len(posts))
	people := make([]string, 0, 2*len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		people = append(people, p.UserID, p.OwnerID)
	}

	counts := map[string]int{}
	if len(ids) > 0 {
		var err error
		if counts, err = s.store.CountComments(ctx, ids); err != nil {
			s.log.Warn("count comments failed", zap.Error(err))
			counts = map[string]int{}
		}
	}
	profiles := s.loadProfiles(ctx, people)

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, newPostView(p, profiles, counts[p.ID], s.render))
	}
	return views
}

// PostDetail - пост с деревом комментариев. Профили автора поста,
// владельца и всех комментаторов загружаются одним пакетом.
func (s *Service) PostDetail(ctx context.Context, scope *access.Scope, postID string) (*PostDetail, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		apperr.Log(s.log, err, "get post failed", zap.String("post_id", postID))
		return nil, apperr.Wrap(ErrReadFailed, err)
	}

	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		s.log.Error("list comments failed", zap.String("post_id", postID), zap.Error(err))
		comments = nil
	}

	people := []string{post.UserID, post.OwnerID}
	for _, c := range comments {
		people = append(people, c.UserID)
	}
	profiles := s.loadProfiles(ctx, people)

	entries := make([]thread.Entry, 0, len(comments))
	for _, c := range comments {
		entries = append(entries, thread.Entry{Comment: c, Author: profiles[c.UserID]})
	}

	return &PostDetail{
		Scope:    scope,
		Post:     newPostView(post, profiles, len(comments), s.render),
		Comments: threadViews(thread.Assemble(entries), scope, s.render),
	}, nil
}
