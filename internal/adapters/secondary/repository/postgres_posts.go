package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

const postColumns = `id, user_id, photo_url, thumbnail_url, caption, like_count, comment_count, is_active, created_at, updated_at`

// PostgresPostRepo porte les posts et les arêtes de like : le compteur
// like_count est toujours modifié dans la transaction qui touche l'arête.
type PostgresPostRepo struct {
	db *pgxpool.Pool
}

var _ ports.PostRepository = (*PostgresPostRepo)(nil)

func NewPostgresPostRepo(db *pgxpool.Pool) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

func (r *PostgresPostRepo) Save(ctx context.Context, post *domain.Post) error {
	q := `
		INSERT INTO posts (` + postColumns + `)
		VALUES (@id, @user_id, @photo_url, @thumbnail_url, @caption, @like_count, @comment_count, @is_active, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":            post.ID,
		"user_id":       post.UserID,
		"photo_url":     post.PhotoURL,
		"thumbnail_url": post.ThumbnailURL,
		"caption":       post.Caption,
		"like_count":    post.LikeCount,
		"comment_count": post.CommentCount,
		"is_active":     post.IsActive,
		"created_at":    post.CreatedAt,
		"updated_at":    post.UpdatedAt,
	}

	_, err := r.db.Exec(ctx, q, args)
	return handleError("db: save post", err)
}

func (r *PostgresPostRepo) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND is_active`
	p, err := scanPost(r.db.QueryRow(ctx, q, postID))
	if err != nil {
		return nil, notFound("db: find post", err, domain.ErrPostNotFound)
	}
	return p, nil
}

// ListByAuthors : le total et la fenêtre partent dans le même aller-retour (pgx.Batch).
// OFFSET reste acceptable ici : la taille de page est bornée à 100.
func (r *PostgresPostRepo) ListByAuthors(ctx context.Context, authorIDs []string, page domain.PageRequest) ([]*domain.Post, int64, error) {
	if len(authorIDs) == 0 {
		return []*domain.Post{}, 0, nil
	}

	batch := &pgx.Batch{}
	batch.Queue(`SELECT COUNT(*) FROM posts WHERE user_id = ANY($1) AND is_active`, authorIDs)
	batch.Queue(`
		SELECT `+postColumns+`
		FROM posts
		WHERE user_id = ANY($1) AND is_active
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, authorIDs, page.Size, page.Offset())

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var total int64
	if err := br.QueryRow().Scan(&total); err != nil {
		return nil, 0, handleError("db: count feed posts", err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, 0, handleError("db: list feed posts", err)
	}
	posts, err := collectPosts(rows)
	if err != nil {
		return nil, 0, handleError("db: list feed posts", err)
	}
	return posts, total, nil
}

func (r *PostgresPostRepo) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1 AND is_active`, authorID).Scan(&n)
	if err != nil {
		return 0, handleError("db: count posts", err)
	}
	return n, nil
}

// --- LIKES ---

// AddLike verrouille la ligne du post (FOR UPDATE) : deux likes concurrents
// sur la même paire sont sérialisés avant le test d'existence de l'arête.
func (r *PostgresPostRepo) AddLike(ctx context.Context, like domain.Like) (*domain.Post, error) {
	var post *domain.Post
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := lockPost(ctx, tx, like.PostID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO likes (user_id, post_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, post_id) DO NOTHING
		`, like.UserID, like.PostID, like.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAlreadyLiked
		}

		post, err = scanPost(tx.QueryRow(ctx,
			`UPDATE posts SET like_count = like_count + 1 WHERE id = $1 RETURNING `+postColumns, like.PostID))
		return err
	})
	if err != nil {
		return nil, handleError("db: add like", err)
	}
	return post, nil
}

func (r *PostgresPostRepo) RemoveLike(ctx context.Context, postID, userID string) (*domain.Post, bool, error) {
	var (
		post    *domain.Post
		floored bool
	)
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		prev, err := lockPost(ctx, tx, postID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotLiked
		}

		// Plancher à 0 : un compteur déjà nul signale une dérive
		floored = prev == 0
		post, err = scanPost(tx.QueryRow(ctx,
			`UPDATE posts SET like_count = GREATEST(like_count - 1, 0) WHERE id = $1 RETURNING `+postColumns, postID))
		return err
	})
	if err != nil {
		return nil, false, handleError("db: remove like", err)
	}
	return post, floored, nil
}

func (r *PostgresPostRepo) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND post_id = $2)`, userID, postID).Scan(&ok)
	if err != nil {
		return false, handleError("db: has liked", err)
	}
	return ok, nil
}

func (r *PostgresPostRepo) CountLikes(ctx context.Context, postID string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&n); err != nil {
		return 0, handleError("db: count likes", err)
	}
	return n, nil
}

// --- HELPERS ---

// lockPost prend le verrou ligne et renvoie le like_count courant.
func lockPost(ctx context.Context, tx pgx.Tx, postID string) (int64, error) {
	var likeCount int64
	err := tx.QueryRow(ctx, `SELECT like_count FROM posts WHERE id = $1 AND is_active FOR UPDATE`, postID).Scan(&likeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrPostNotFound
	}
	return likeCount, err
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID, &p.UserID, &p.PhotoURL, &p.ThumbnailURL, &p.Caption,
		&p.LikeCount, &p.CommentCount, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]*domain.Post, error) {
	defer rows.Close()
	posts := []*domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
