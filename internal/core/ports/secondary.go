package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

// UserRepository : les erreurs d'unicité remontent en ErrUsernameTaken / ErrEmailTaken.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDs ignore silencieusement les ids inconnus (hydratation du feed)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *domain.User) error
	Search(ctx context.Context, query string, page domain.PageRequest) ([]*domain.User, int64, error)
}

// PostRepository est le ContentStore. Il porte aussi les arêtes de like,
// pour que l'arête et le compteur changent dans la même transaction.
type PostRepository interface {
	Save(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, postID string) (*domain.Post, error)
	// ListByAuthors : posts actifs des auteurs, created_at DESC, fenêtre de la page + total
	ListByAuthors(ctx context.Context, authorIDs []string, page domain.PageRequest) ([]*domain.Post, int64, error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)

	// AddLike : ErrPostNotFound, ErrAlreadyLiked, sinon arête + like_count+1 atomiques.
	AddLike(ctx context.Context, like domain.Like) (*domain.Post, error)
	// RemoveLike : ErrPostNotFound, ErrNotLiked, sinon suppression + like_count-1 (plancher 0).
	// floored vaut true si le compteur était déjà à 0.
	RemoveLike(ctx context.Context, postID, userID string) (post *domain.Post, floored bool, err error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int64, error)
}

// FollowRepository est le RelationStore des arêtes FOLLOWS.
type FollowRepository interface {
	// CreateFollow : ErrAlreadyFollowing si l'arête existe déjà
	CreateFollow(ctx context.Context, follow *domain.Follow) (*domain.Follow, error)
	// DeleteFollow : ErrNotFollowing si l'arête est absente
	DeleteFollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	CountFollowing(ctx context.Context, userID string) (int64, error)
	CountFollowers(ctx context.Context, userID string) (int64, error)
}

// --- CACHE ---

// Cache : Get renvoie domain.ErrCacheMiss si la clé est absente ou expirée.
// Aucune garantie transactionnelle entre plusieurs clés.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// --- MESSAGERIE (BROKER) ---

type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserUpdated(ctx context.Context, userID string) error
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	PublishPostLiked(ctx context.Context, post *domain.Post, userID string) error
	PublishPostUnliked(ctx context.Context, post *domain.Post, userID string) error
	PublishFollowed(ctx context.Context, follow *domain.Follow) error
	PublishUnfollowed(ctx context.Context, followerID, followingID string) error
}

// --- SÉCURITÉ (CRYPTO) ---

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenProvider interface {
	Generate(user *domain.User) (token string, expiresIn time.Duration, err error)
	Validate(token string) (userID string, err error)
}
