package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/storage"
)

type MemoryStorage struct {
	profiles    map[string]*models.Profile
	delegations []*models.Delegation
	posts       map[string]*models.Post
	comments    map[string][]*models.Comment
	mu          sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		profiles: make(map[string]*models.Profile),
		posts:    make(map[string]*models.Post),
		comments: make(map[string][]*models.Comment),
	}
}

func (s *MemoryStorage) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.profiles[id]
	if !exists {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStorage) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("profile with email %s: %w", email, storage.ErrNotFound)
}

func (s *MemoryStorage) GetProfiles(ctx context.Context, ids []string) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Profile
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, exists := s.profiles[id]; exists {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *MemoryStorage) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *profile
	s.profiles[profile.ID] = &cp
	return nil
}

func (s *MemoryStorage) CreateDelegation(ctx context.Context, d *models.Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.delegations = append(s.delegations, &cp)
	return nil
}

func (s *MemoryStorage) FindDelegationByManagerID(ctx context.Context, ownerID, managerID string) (*models.Delegation, error) {
	found := s.filterDelegations(func(d *models.Delegation) bool {
		return d.AccountOwnerID == ownerID && d.ManagerID != nil && *d.ManagerID == managerID
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("delegation %s -> %s: %w", ownerID, managerID, storage.ErrNotFound)
	}
	return found[0], nil
}

func (s *MemoryStorage) FindDelegationByManagerEmail(ctx context.Context, ownerID, email string) (*models.Delegation, error) {
	found := s.filterDelegations(func(d *models.Delegation) bool {
		return d.AccountOwnerID == ownerID && strings.EqualFold(d.ManagerEmail, email)
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("delegation %s -> %s: %w", ownerID, email, storage.ErrNotFound)
	}
	return found[0], nil
}

func (s *MemoryStorage) ListDelegationsByManagerID(ctx context.Context, managerID string) ([]*models.Delegation, error) {
	return s.filterDelegations(func(d *models.Delegation) bool {
		return d.ManagerID != nil && *d.ManagerID == managerID
	}), nil
}

func (s *MemoryStorage) ListDelegationsByManagerEmail(ctx context.Context, email string) ([]*models.Delegation, error) {
	return s.filterDelegations(func(d *models.Delegation) bool {
		return strings.EqualFold(d.ManagerEmail, email)
	}), nil
}

func (s *MemoryStorage) ListDelegationsByOwner(ctx context.Context, ownerID string) ([]*models.Delegation, error) {
	return s.filterDelegations(func(d *models.Delegation) bool {
		return d.AccountOwnerID == ownerID
	}), nil
}

// filterDelegations возвращает копии в порядке вставки
func (s *MemoryStorage) filterDelegations(match func(d *models.Delegation) bool) []*models.Delegation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Delegation
	for _, d := range s.delegations {
		if match(d) {
			cp := *d
			result = append(result, &cp)
		}
	}
	return result
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	cp := *post
	return &cp, nil
}

// sortedPosts возвращает копии постов от новых к старым, при равном времени по убыванию id;
// вызывается под блокировкой
func (s *MemoryStorage) sortedPosts(match func(p *models.Post) bool) []*models.Post {
	var posts []*models.Post
	for _, p := range s.posts {
		if match(p) {
			cp := *p
			posts = append(posts, &cp)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

func (s *MemoryStorage) ListPostsByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedPosts(func(p *models.Post) bool { return p.OwnerID == ownerID }), nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context, limit int, cursor *models.PostCursor) (*models.PaginatedPosts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedPosts(func(p *models.Post) bool { return true })
	totalCount := len(all)

	// Применение курсора
	startIdx := 0
	if cursor != nil {
		startIdx = len(all)
		for i, post := range all {
			if cursor.Precedes(post) {
				startIdx = i
				break
			}
		}
	}

	// Ограничение количества
	endIdx := startIdx + limit
	if endIdx > len(all) {
		endIdx = len(all)
	}

	var nextCursor *string
	if endIdx < len(all) && endIdx > startIdx {
		last := all[endIdx-1]
		cursorVal := models.PostCursor{CreatedAt: last.CreatedAt, ID: last.ID}.String()
		nextCursor = &cursorVal
	}

	return &models.PaginatedPosts{
		Posts:      all[startIdx:endIdx],
		TotalCount: totalCount,
		NextCursor: nextCursor,
	}, nil
}

func (s *MemoryStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *comment
	s.comments[comment.PostID] = append(s.comments[comment.PostID], &cp)
	return nil
}

func (s *MemoryStorage) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, list := range s.comments {
		for _, c := range list {
			if c.ID == id {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
}

func (s *MemoryStorage) ListComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.comments[postID]
	result := make([]*models.Comment, 0, len(list))
	for _, c := range list {
		cp := *c
		result = append(result, &cp)
	}
	// Сортировка по CreatedAt
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStorage) CountComments(ctx context.Context, postIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(postIDs))
	for _, id := range postIDs {
		if n := len(s.comments[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

// Close очищает хранилище
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = make(map[string]*models.Profile)
	s.delegations = nil
	s.posts = make(map[string]*models.Post)
	s.comments = make(map[string][]*models.Comment)
	return nil
}
