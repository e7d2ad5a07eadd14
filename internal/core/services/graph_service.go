package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type GraphService struct {
	follows   ports.FollowRepository
	users     ports.UserRepository
	cache     ports.Cache
	publisher ports.EventPublisher
	policy    CachePolicy
	now       func() time.Time
}

func NewGraphService(
	follows ports.FollowRepository,
	users ports.UserRepository,
	cache ports.Cache,
	publisher ports.EventPublisher,
	policy CachePolicy,
) *GraphService {
	return &GraphService{
		follows:   follows,
		users:     users,
		cache:     cache,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
	}
}

func (s *GraphService) Follow(ctx context.Context, followerID, followingID string) (*domain.Follow, error) {
	follow, err := domain.NewFollow(followerID, followingID, s.now())
	if err != nil {
		return nil, err
	}

	// 1. Les deux extrémités doivent exister côté users
	if err := s.mustExist(ctx, followerID, domain.ErrFollowerNotFound); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, followingID, domain.ErrUserNotFound); err != nil {
		return nil, err
	}

	// 2. L'unicité de l'arête est garantie par le store (ErrAlreadyFollowing)
	created, err := s.follows.CreateFollow(ctx, follow)
	if err != nil {
		return nil, err
	}

	// 3. Les compteurs des deux profils ont changé
	invalidate(ctx, s.cache, s.policy.OpTimeout, userKey(followerID), userKey(followingID))

	if err := s.publisher.PublishFollowed(ctx, created); err != nil {
		slog.Warn("⚠️ Failed to publish follow event", "follower_id", followerID, "following_id", followingID, "error", err)
	}
	return created, nil
}

func (s *GraphService) Unfollow(ctx context.Context, followerID, followingID string) error {
	if followerID == "" || followingID == "" {
		return domain.ErrInvalidID
	}
	if err := s.follows.DeleteFollow(ctx, followerID, followingID); err != nil {
		return err
	}

	invalidate(ctx, s.cache, s.policy.OpTimeout, userKey(followerID), userKey(followingID))

	if err := s.publisher.PublishUnfollowed(ctx, followerID, followingID); err != nil {
		slog.Warn("⚠️ Failed to publish unfollow event", "follower_id", followerID, "following_id", followingID, "error", err)
	}
	return nil
}

func (s *GraphService) Following(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	ids, err := s.follows.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *GraphService) Followers(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	ids, err := s.follows.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *GraphService) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == "" || followingID == "" {
		return false, domain.ErrInvalidID
	}
	return s.follows.IsFollowing(ctx, followerID, followingID)
}

func (s *GraphService) mustExist(ctx context.Context, userID string, notFound error) error {
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}
