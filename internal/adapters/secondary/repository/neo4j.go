package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Neo4jFollowRepo stocke les arêtes (:User)-[:FOLLOWS]->(:User).
// Les noeuds ne portent que l'id : les profils vivent dans Postgres.
type Neo4jFollowRepo struct {
	driver neo4j.DriverWithContext
}

var _ ports.FollowRepository = (*Neo4jFollowRepo)(nil)

func NewNeo4jFollowRepo(driver neo4j.DriverWithContext) *Neo4jFollowRepo {
	return &Neo4jFollowRepo{driver: driver}
}

// EnsureSchema crée les index pour que les lookups par ID soient O(1)
func (r *Neo4jFollowRepo) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, query := range []string{
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
		`CREATE INDEX follows_created_at IF NOT EXISTS FOR ()-[r:FOLLOWS]-() ON (r.created_at)`,
	} {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, nil)
			return nil, err
		})
		if err != nil {
			return r.handleError("neo4j: ensure schema", err)
		}
	}
	return nil
}

// CreateFollow : MERGE est idempotent, donc on marque la création avec un jeton
// unique. Si le jeton relu n'est pas le nôtre, l'arête existait déjà.
func (r *Neo4jFollowRepo) CreateFollow(ctx context.Context, follow *domain.Follow) (*domain.Follow, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	op := uuid.NewString()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (a:User {id: $followerId})
			MERGE (b:User {id: $followingId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = $createdAt, r.op = $op
			RETURN r.op = $op AS created, r.created_at AS created_at
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"followerId":  follow.FollowerID,
			"followingId": follow.FollowingID,
			"createdAt":   follow.CreatedAt,
			"op":          op,
		})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}

		created, _ := rec.Get("created")
		if ok, _ := created.(bool); !ok {
			return nil, domain.ErrAlreadyFollowing
		}
		out := *follow
		if at, ok := rec.Get("created_at"); ok {
			if t, ok := at.(time.Time); ok {
				out.CreatedAt = t.UTC()
			}
		}
		return &out, nil
	})
	if err != nil {
		return nil, r.handleError("neo4j: create follow", err)
	}
	return result.(*domain.Follow), nil
}

func (r *Neo4jFollowRepo) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (:User {id: $followerId})-[r:FOLLOWS]->(:User {id: $followingId})
			DELETE r
			RETURN count(r) AS deleted
		`
		res, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "followingId": followingID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if deleted, _ := rec.Get("deleted"); deleted == int64(0) {
			return nil, domain.ErrNotFollowing
		}
		return nil, nil
	})
	return r.handleError("neo4j: delete follow", err)
}

func (r *Neo4jFollowRepo) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	v, err := r.readSingle(ctx, "neo4j: is following", `
		RETURN EXISTS {
			MATCH (:User {id: $followerId})-[:FOLLOWS]->(:User {id: $followingId})
		} AS following
	`, map[string]any{"followerId": followerID, "followingId": followingID})
	if err != nil {
		return false, err
	}
	ok, _ := v.(bool)
	return ok, nil
}

func (r *Neo4jFollowRepo) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return r.readIDs(ctx, "neo4j: following ids",
		`MATCH (:User {id: $userId})-[r:FOLLOWS]->(f:User) RETURN f.id AS id ORDER BY r.created_at DESC`, userID)
}

func (r *Neo4jFollowRepo) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return r.readIDs(ctx, "neo4j: follower ids",
		`MATCH (:User {id: $userId})<-[r:FOLLOWS]-(f:User) RETURN f.id AS id ORDER BY r.created_at DESC`, userID)
}

func (r *Neo4jFollowRepo) CountFollowing(ctx context.Context, userID string) (int64, error) {
	return r.readCount(ctx, "neo4j: count following",
		`OPTIONAL MATCH (:User {id: $userId})-[r:FOLLOWS]->() RETURN count(r) AS n`, userID)
}

func (r *Neo4jFollowRepo) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return r.readCount(ctx, "neo4j: count followers",
		`OPTIONAL MATCH (:User {id: $userId})<-[r:FOLLOWS]-() RETURN count(r) AS n`, userID)
}

// --- HELPERS ---

func (r *Neo4jFollowRepo) readSingle(ctx context.Context, op, query string, params map[string]any) (any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	v, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return rec.Values[0], nil
	})
	if err != nil {
		return nil, r.handleError(op, err)
	}
	return v, nil
}

func (r *Neo4jFollowRepo) readCount(ctx context.Context, op, query, userID string) (int64, error) {
	v, err := r.readSingle(ctx, op, query, map[string]any{"userId": userID})
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

func (r *Neo4jFollowRepo) readIDs(ctx context.Context, op, query, userID string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"userId": userID})
		if err != nil {
			return nil, err
		}
		ids := []string{}
		for res.Next(ctx) {
			id, _ := res.Record().Get("id")
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, r.handleError(op, err)
	}
	return result.([]string), nil
}

// handleError : erreurs du Domaine inchangées, erreurs rejouables -> Transient
func (r *Neo4jFollowRepo) handleError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	if neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
