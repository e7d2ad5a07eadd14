package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

type RegisterCmd struct {
	Username string
	Email    string
	Password string
	FullName string
}

type LoginCmd struct {
	Email    string
	Password string
}

type UpdateProfileCmd struct {
	ActorID           string // user authentifié
	UserID            string // profil ciblé
	FullName          *string
	Bio               *string
	ProfilePictureURL *string
}

type CreatePostCmd struct {
	UserID       string
	PhotoURL     string
	ThumbnailURL string
	Caption      string
}

// --- OUTPUTS ---

type AuthResponse struct {
	User        domain.UserProfile
	AccessToken string
	ExpiresIn   time.Duration
}

// --- PORTS PRIMAIRES (Driving) ---

type UserService interface {
	Register(ctx context.Context, cmd RegisterCmd) (*AuthResponse, error)
	Login(ctx context.Context, cmd LoginCmd) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (string, error)

	GetUser(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCmd) (*domain.UserProfile, error)
	SearchUsers(ctx context.Context, query string, page domain.PageRequest) (*domain.Page[domain.Author], error)
}

// GraphService est le SocialGraph.
type GraphService interface {
	Follow(ctx context.Context, followerID, followingID string) (*domain.Follow, error)
	Unfollow(ctx context.Context, followerID, followingID string) error
	Following(ctx context.Context, userID string) ([]string, error)
	Followers(ctx context.Context, userID string) ([]string, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
}

type ContentService interface {
	CreatePost(ctx context.Context, cmd CreatePostCmd) (*domain.PostView, error)
	GetPost(ctx context.Context, postID string) (*domain.PostView, error)
	LikePost(ctx context.Context, postID, userID string) (*domain.PostView, error)
	UnlikePost(ctx context.Context, postID, userID string) (*domain.PostView, error)
	CheckLikeCount(ctx context.Context, postID string) error
	ListUserPosts(ctx context.Context, userID string, page domain.PageRequest) (*domain.Page[domain.PostView], error)
	InvalidateAuthorPosts(ctx context.Context, authorID string) error
}

// FeedService est le FeedAssembler.
type FeedService interface {
	GetUserFeed(ctx context.Context, userID string, page domain.PageRequest) (*domain.Page[domain.PostView], error)
}
