package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Identity - аутентифицированный пользователь, выданный внешним провайдером
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Delegation - право менеджера действовать от имени владельца аккаунта.
// ManagerID пуст, если менеджер ещё не зарегистрирован; тогда поиск идёт по ManagerEmail.
type Delegation struct {
	ID             string    `json:"id"`
	AccountOwnerID string    `json:"accountOwnerId"`
	ManagerID      *string   `json:"managerId"`
	ManagerEmail   string    `json:"managerEmail"`
	AccessLevel    string    `json:"accessLevel"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID              string    `json:"id"`
	PostID          string    `json:"postId"`
	UserID          string    `json:"userId"`
	OwnerID         string    `json:"ownerId"`
	Content         string    `json:"content"`
	ParentCommentID *string   `json:"parentCommentId"`
	CreatedAt       time.Time `json:"createdAt"`
}

type PaginatedPosts struct {
	Posts      []*Post `json:"posts"`
	TotalCount int     `json:"totalCount"`
	NextCursor *string `json:"nextCursor"`
}

// PostCursor - позиция в ленте, упорядоченной по (created_at DESC, id DESC).
// id различает посты с одинаковым временем создания.
type PostCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c PostCursor) String() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Precedes сообщает, что пост p идет в ленте после курсора
func (c PostCursor) Precedes(p *Post) bool {
	if p.CreatedAt.Equal(c.CreatedAt) {
		return p.ID < c.ID
	}
	return p.CreatedAt.Before(c.CreatedAt)
}

// ParsePostCursor разбирает значение, полученное из PostCursor.String
func ParsePostCursor(s string) (*PostCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor %q", s)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return &PostCursor{CreatedAt: createdAt, ID: id}, nil
}

// Account - элемент переключателя аккаунтов
type Account struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	AccessLevel string `json:"accessLevel,omitempty"`
	IsOwn       bool   `json:"isOwn"`
}

type Role string

const (
	RoleAccountOwner         Role = "account-owner"
	RoleAnalyticsViewer      Role = "analytics-viewer"
	RoleContentManager       Role = "content-manager"
	RoleEngagementSpecialist Role = "engagement-specialist"
)

var roles = []Role{RoleAccountOwner, RoleAnalyticsViewer, RoleContentManager, RoleEngagementSpecialist}

// Roles возвращает все допустимые роли
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// ParseRole проверяет, что метка роли входит в фиксированный набор
func ParseRole(s string) (Role, error) {
	for _, r := range roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type Action string

const (
	ActionView    Action = "canview"
	ActionCreate  Action = "cancreate"
	ActionComment Action = "cancomment"
	ActionAnalyse Action = "cananalyse"
)

// ShortID возвращает первые 8 символов идентификатора для подписей-заглушек
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// PlaceholderName - подпись аккаунта без строки в profiles
func PlaceholderName(accountID string) string {
	return "Account (" + ShortID(accountID) + "...)"
}
