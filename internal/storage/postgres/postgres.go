package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_email ON profiles(lower(email));

	CREATE TABLE IF NOT EXISTS account_access (
		id TEXT PRIMARY KEY,
		account_owner_id TEXT NOT NULL,
		manager_id TEXT,
		manager_email TEXT NOT NULL,
		access_level TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_account_access_owner ON account_access(account_owner_id);
	CREATE INDEX IF NOT EXISTS idx_account_access_manager_id ON account_access(manager_id);
	CREATE INDEX IF NOT EXISTS idx_account_access_manager_email ON account_access(lower(manager_email));

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_owner_id ON posts(owner_id);
	CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id),
		user_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		parent_comment_id TEXT REFERENCES comments(id),
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return err
}

const profileColumns = `id, full_name, email, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, "profile "+id)
	}
	return p, nil
}

func (s *PostgresStorage) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE lower(email)=lower($1)
		ORDER BY updated_at DESC
		LIMIT 1`, email))
	if err != nil {
		return nil, notFound(err, "profile with email "+email)
	}
	return p, nil
}

func (s *PostgresStorage) GetProfiles(ctx context.Context, ids []string) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *PostgresStorage) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, full_name, email, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET full_name = EXCLUDED.full_name, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at`,
		profile.ID, profile.FullName, profile.Email, profile.UpdatedAt)
	return err
}

const delegationColumns = `id, account_owner_id, manager_id, manager_email, access_level, created_at`

func scanDelegation(row pgx.Row) (*models.Delegation, error) {
	var d models.Delegation
	if err := row.Scan(&d.ID, &d.AccountOwnerID, &d.ManagerID, &d.ManagerEmail, &d.AccessLevel, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStorage) queryDelegations(ctx context.Context, where string, args ...any) ([]*models.Delegation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+delegationColumns+` FROM account_access WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// CreateDelegation вставляет строку без проверки уникальности
func (s *PostgresStorage) CreateDelegation(ctx context.Context, d *models.Delegation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_access (`+delegationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.AccountOwnerID, d.ManagerID, d.ManagerEmail, d.AccessLevel, d.CreatedAt)
	return err
}

func (s *PostgresStorage) FindDelegationByManagerID(ctx context.Context, ownerID, managerID string) (*models.Delegation, error) {
	d, err := scanDelegation(s.pool.QueryRow(ctx, `
		SELECT `+delegationColumns+` FROM account_access
		WHERE account_owner_id=$1 AND manager_id=$2
		ORDER BY created_at
		LIMIT 1`, ownerID, managerID))
	if err != nil {
		return nil, notFound(err, "delegation "+ownerID+" -> "+managerID)
	}
	return d, nil
}

func (s *PostgresStorage) FindDelegationByManagerEmail(ctx context.Context, ownerID, email string) (*models.Delegation, error) {
	d, err := scanDelegation(s.pool.QueryRow(ctx, `
		SELECT `+delegationColumns+` FROM account_access
		WHERE account_owner_id=$1 AND lower(manager_email)=lower($2)
		ORDER BY created_at
		LIMIT 1`, ownerID, email))
	if err != nil {
		return nil, notFound(err, "delegation "+ownerID+" -> "+email)
	}
	return d, nil
}

func (s *PostgresStorage) ListDelegationsByManagerID(ctx context.Context, managerID string) ([]*models.Delegation, error) {
	return s.queryDelegations(ctx, `manager_id=$1`, managerID)
}

func (s *PostgresStorage) ListDelegationsByManagerEmail(ctx context.Context, email string) ([]*models.Delegation, error) {
	return s.queryDelegations(ctx, `lower(manager_email)=lower($1)`, email)
}

func (s *PostgresStorage) ListDelegationsByOwner(ctx context.Context, ownerID string) ([]*models.Delegation, error) {
	return s.queryDelegations(ctx, `account_owner_id=$1`, ownerID)
}

const postColumns = `id, user_id, owner_id, content, created_at`

func scanPosts(rows pgx.Rows) ([]*models.Post, error) {
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.OwnerID, &p.Content, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.UserID, post.OwnerID, post.Content, post.CreatedAt)
	return err
}

func (s *PostgresStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	err := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id=$1`, id).
		Scan(&p.ID, &p.UserID, &p.OwnerID, &p.Content, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "post "+id)
	}
	return &p, nil
}

func (s *PostgresStorage) ListPostsByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE owner_id=$1
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

func (s *PostgresStorage) ListPosts(ctx context.Context, limit int, cursor *models.PostCursor) (*models.PaginatedPosts, error) {
	// Подсчет общего количества
	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&totalCount); err != nil {
		return nil, err
	}

	var after *time.Time
	var afterID string
	if cursor != nil {
		after, afterID = &cursor.CreatedAt, cursor.ID
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE ($1::TIMESTAMPTZ IS NULL OR (created_at, id) < ($1::TIMESTAMPTZ, $2::TEXT))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, after, afterID, limit+1)
	if err != nil {
		return nil, err
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}

	var nextCursor *string
	if len(posts) > limit {
		posts = posts[:limit]
		last := posts[limit-1]
		cursorVal := models.PostCursor{CreatedAt: last.CreatedAt, ID: last.ID}.String()
		nextCursor = &cursorVal
	}

	return &models.PaginatedPosts{
		Posts:      posts,
		TotalCount: totalCount,
		NextCursor: nextCursor,
	}, nil
}

const commentColumns = `id, post_id, user_id, owner_id, content, parent_comment_id, created_at`

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.OwnerID, &c.Content, &c.ParentCommentID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		comment.ID, comment.PostID, comment.UserID, comment.OwnerID, comment.Content, comment.ParentCommentID, comment.CreatedAt)
	return err
}

func (s *PostgresStorage) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(s.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, "comment "+id)
	}
	return c, nil
}

func (s *PostgresStorage) ListComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE post_id=$1
		ORDER BY created_at DESC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStorage) CountComments(ctx context.Context, postIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT post_id, COUNT(*) FROM comments
		WHERE post_id = ANY($1)
		GROUP BY post_id`, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
