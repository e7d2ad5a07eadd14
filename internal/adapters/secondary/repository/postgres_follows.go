package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// PostgresFollowRepo est le backend relationnel du graphe (GRAPH_BACKEND=postgres).
type PostgresFollowRepo struct {
	db *pgxpool.Pool
}

var _ ports.FollowRepository = (*PostgresFollowRepo)(nil)

func NewPostgresFollowRepo(db *pgxpool.Pool) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

func (r *PostgresFollowRepo) CreateFollow(ctx context.Context, follow *domain.Follow) (*domain.Follow, error) {
	q := `
		INSERT INTO follows (follower_id, following_id, created_at)
		VALUES (@follower_id, @following_id, @created_at)
		ON CONFLICT (follower_id, following_id) DO NOTHING
		RETURNING created_at
	`
	args := pgx.NamedArgs{
		"follower_id":  follow.FollowerID,
		"following_id": follow.FollowingID,
		"created_at":   follow.CreatedAt,
	}

	created := *follow
	err := r.db.QueryRow(ctx, q, args).Scan(&created.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// ON CONFLICT : aucune ligne insérée
		return nil, domain.ErrAlreadyFollowing
	}
	if err != nil {
		return nil, handleError("db: create follow", err)
	}
	created.CreatedAt = created.CreatedAt.UTC()
	return &created, nil
}

func (r *PostgresFollowRepo) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
	if err != nil {
		return handleError("db: delete follow", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFollowing
	}
	return nil
}

func (r *PostgresFollowRepo) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID).Scan(&ok)
	if err != nil {
		return false, handleError("db: is following", err)
	}
	return ok, nil
}

func (r *PostgresFollowRepo) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, "db: following ids",
		`SELECT following_id FROM follows WHERE follower_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresFollowRepo) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, "db: follower ids",
		`SELECT follower_id FROM follows WHERE following_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresFollowRepo) CountFollowing(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, "db: count following", `SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID)
}

func (r *PostgresFollowRepo) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, "db: count followers", `SELECT COUNT(*) FROM follows WHERE following_id = $1`, userID)
}

func (r *PostgresFollowRepo) ids(ctx context.Context, op, q, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, handleError(op, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, handleError(op, err)
	}
	return ids, nil
}

func (r *PostgresFollowRepo) count(ctx context.Context, op, q, userID string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, handleError(op, err)
	}
	return n, nil
}
