package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

const userColumns = `id, username, email, password_hash, full_name, bio, profile_picture_url, is_verified, is_active, created_at, updated_at`

type PostgresUserRepo struct {
	db *pgxpool.Pool
}

var _ ports.UserRepository = (*PostgresUserRepo)(nil)

func NewPostgresUserRepo(db *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) Save(ctx context.Context, user *domain.User) error {
	q := `
		INSERT INTO users (` + userColumns + `)
		VALUES (@id, @username, @email, @password_hash, @full_name, @bio, @profile_picture_url, @is_verified, @is_active, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":                  user.ID,
		"username":            user.Username,
		"email":               user.Email,
		"password_hash":       user.PasswordHash,
		"full_name":           user.FullName,
		"bio":                 user.Bio,
		"profile_picture_url": user.ProfilePictureURL,
		"is_verified":         user.IsVerified,
		"is_active":           user.IsActive,
		"created_at":          user.CreatedAt,
		"updated_at":          user.UpdatedAt,
	}

	_, err := r.db.Exec(ctx, q, args)
	return handleError("db: save user", err)
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound("db: get user by id", err, domain.ErrUserNotFound)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRow(ctx, q, email))
	if err != nil {
		return nil, notFound("db: get user by email", err, domain.ErrUserNotFound)
	}
	return u, nil
}

// GetByIDs : BATCH FETCH, une seule requête pour hydrater les auteurs d'une page
func (r *PostgresUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) AND is_active`
	rows, err := r.db.Query(ctx, q, ids)
	if err != nil {
		return nil, handleError("db: get users by ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, handleError("db: scan user", err)
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, handleError("db: get users by ids", err)
	}
	return out, nil
}

func (r *PostgresUserRepo) Exists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "db: user exists", `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_active)`, id)
}

func (r *PostgresUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "db: username exists", `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "db: email exists", `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *PostgresUserRepo) Update(ctx context.Context, user *domain.User) error {
	q := `
		UPDATE users
		SET full_name = @full_name, bio = @bio, profile_picture_url = @profile_picture_url, updated_at = @updated_at
		WHERE id = @id
	`
	args := pgx.NamedArgs{
		"id":                  user.ID,
		"full_name":           user.FullName,
		"bio":                 user.Bio,
		"profile_picture_url": user.ProfilePictureURL,
		"updated_at":          user.UpdatedAt,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return handleError("db: update user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Search : sous-chaîne insensible à la casse sur username ou nom complet, triée par username.
func (r *PostgresUserRepo) Search(ctx context.Context, query string, page domain.PageRequest) ([]*domain.User, int64, error) {
	pattern := likePattern(query)

	var total int64
	countQ := `SELECT COUNT(*) FROM users WHERE is_active AND (username ILIKE $1 OR full_name ILIKE $1)`
	if err := r.db.QueryRow(ctx, countQ, pattern).Scan(&total); err != nil {
		return nil, 0, handleError("db: count users", err)
	}
	if total == 0 {
		return []*domain.User{}, 0, nil
	}

	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active AND (username ILIKE $1 OR full_name ILIKE $1)
		ORDER BY username
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, q, pattern, page.Size, page.Offset())
	if err != nil {
		return nil, 0, handleError("db: search users", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, page.Size)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, handleError("db: scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, handleError("db: search users", err)
	}
	return users, total, nil
}

// --- HELPERS ---

func (r *PostgresUserRepo) exists(ctx context.Context, op, q string, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, q, arg).Scan(&ok); err != nil {
		return false, handleError(op, err)
	}
	return ok, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Bio,
		&u.ProfilePictureURL, &u.IsVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
