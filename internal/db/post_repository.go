package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrPostNotFound = errors.New("post not found")

type Post struct {
	ID           uuid.UUID
	Title        string
	Content      string
	UserID       uuid.UUID
	AuthorName   string
	AuthorAvatar string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `
	p.id, p.title, p.content, p.user_id, u.name, u.avatar, p.created_at, p.updated_at
`

// List returns posts newest first, along with the total count.
func (r *PostRepository) List(ctx context.Context, limit, offset int) ([]*Post, int, error) {
	countQuery := `SELECT COUNT(*) FROM posts`

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`

	post := &Post{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID, &post.Title, &post.Content, &post.UserID,
		&post.AuthorName, &post.AuthorAvatar, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post *Post) error {
	query := `
		INSERT INTO posts (id, title, content, title_search, content_search, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Content,
		NormalizeSearch(post.Title), NormalizeSearch(post.Content),
		post.UserID, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

func (r *PostRepository) Update(ctx context.Context, post *Post) error {
	query := `
		UPDATE posts
		SET title = $2, content = $3, title_search = $4, content_search = $5, updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, post.ID, post.Title, post.Content,
		NormalizeSearch(post.Title), NormalizeSearch(post.Content))
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPostNotFound
	}

	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPostNotFound
	}

	return nil
}

// Search matches posts by title or content. The query is folded with the
// same rules the write path applies to the title_search and content_search
// columns, so accented and unaccented input find the same posts. Title
// matches rank above content-only matches.
func (r *PostRepository) Search(ctx context.Context, query string, limit, offset int) ([]*Post, int, error) {
	normalized := NormalizeSearch(query)
	if normalized == "" {
		return []*Post{}, 0, nil
	}
	searchPattern := "%" + normalized + "%"

	countQuery := `
		SELECT COUNT(*)
		FROM posts p
		WHERE p.title_search LIKE $1 OR p.content_search LIKE $1
	`

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, searchPattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	searchQuery := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.title_search LIKE $1 OR p.content_search LIKE $1
		ORDER BY
			CASE WHEN p.title_search LIKE $1 THEN 0 ELSE 1 END,
			p.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, searchQuery, searchPattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search posts: %w", err)
	}
	defer rows.Close()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func scanPosts(rows *sql.Rows) ([]*Post, error) {
	posts := []*Post{}
	for rows.Next() {
		post := &Post{}
		err := rows.Scan(
			&post.ID, &post.Title, &post.Content, &post.UserID,
			&post.AuthorName, &post.AuthorAvatar, &post.CreatedAt, &post.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	return posts, rows.Err()
}
