package storage

import (
	"context"
	"errors"

	"github.com/ButyrinIA/socials/internal/models"
)

// ErrNotFound возвращается, когда строка отсутствует в хранилище
var ErrNotFound = errors.New("not found")

// ProfileStore - таблица profiles
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	// GetProfileByEmail ищет профиль без учёта регистра email
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	// GetProfiles возвращает найденные профили; отсутствующие id пропускаются
	GetProfiles(ctx context.Context, ids []string) ([]*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

// DelegationStore - таблица account_access. Уникальность пары (владелец, менеджер)
// не гарантируется.
type DelegationStore interface {
	CreateDelegation(ctx context.Context, d *models.Delegation) error
	FindDelegationByManagerID(ctx context.Context, ownerID, managerID string) (*models.Delegation, error)
	FindDelegationByManagerEmail(ctx context.Context, ownerID, email string) (*models.Delegation, error)
	ListDelegationsByManagerID(ctx context.Context, managerID string) ([]*models.Delegation, error)
	ListDelegationsByManagerEmail(ctx context.Context, email string) ([]*models.Delegation, error)
	ListDelegationsByOwner(ctx context.Context, ownerID string) ([]*models.Delegation, error)
}

// ContentStore - таблицы posts и comments. Списки отдаются от новых к старым.
type ContentStore interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPostsByOwner(ctx context.Context, ownerID string) ([]*models.Post, error)
	// ListPosts - общая лента по (created_at DESC, id DESC), начиная после cursor
	ListPosts(ctx context.Context, limit int, cursor *models.PostCursor) (*models.PaginatedPosts, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*models.Comment, error)
	CountComments(ctx context.Context, postIDs []string) (map[string]int, error)
}

type Storage interface {
	ProfileStore
	DelegationStore
	ContentStore
	Close() error
}
