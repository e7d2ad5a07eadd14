package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema crée tables, contraintes et index (idempotent).
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	// Sans arguments, pgx passe par le protocole simple : plusieurs statements acceptés
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("db: ensure schema: %w", err)
	}
	return nil
}

// Contraintes nommées dans schema.sql -> erreurs du Domaine
var (
	uniqueViolations = map[string]error{
		"users_username_key": domain.ErrUsernameTaken,
		"users_email_key":    domain.ErrEmailTaken,
		"follows_pkey":       domain.ErrAlreadyFollowing,
		"likes_pkey":         domain.ErrAlreadyLiked,
	}
	foreignKeyViolations = map[string]error{
		"posts_user_id_fkey":        domain.ErrUserNotFound,
		"likes_user_id_fkey":        domain.ErrUserNotFound,
		"likes_post_id_fkey":        domain.ErrPostNotFound,
		"follows_follower_id_fkey":  domain.ErrFollowerNotFound,
		"follows_following_id_fkey": domain.ErrUserNotFound,
	}
	checkViolations = map[string]error{
		"follows_no_self": domain.ErrSelfFollow,
	}
)

// handleError traduit les codes d'erreur PostgreSQL en erreurs du Domaine
func handleError(op string, err error) error {
	if err == nil {
		return nil
	}
	// Déjà traduite (retour d'une closure de transaction)
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if mapped, ok := uniqueViolations[pgErr.ConstraintName]; ok {
				return mapped
			}
			return domain.ErrAlreadyExists
		case "23503": // foreign_key_violation
			if mapped, ok := foreignKeyViolations[pgErr.ConstraintName]; ok {
				return mapped
			}
		case "23514": // check_violation
			if mapped, ok := checkViolations[pgErr.ConstraintName]; ok {
				return mapped
			}
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return domain.NewTransient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.As(err, &connErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound remplace pgx.ErrNoRows par la sentinelle voulue.
func notFound(op string, err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return handleError(op, err)
}

// likePattern échappe les jokers LIKE de la saisie utilisateur.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
