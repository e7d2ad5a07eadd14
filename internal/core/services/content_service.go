package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// taille des lots pour l'invalidation des posts d'un auteur
const invalidationBatchSize = 100

type ContentService struct {
	posts     ports.PostRepository
	users     ports.UserRepository
	cache     ports.Cache
	publisher ports.EventPublisher
	views     *ReadThrough[domain.PostView]
	opTimeout time.Duration
	now       func() time.Time
}

func NewContentService(
	posts ports.PostRepository,
	users ports.UserRepository,
	cache ports.Cache,
	publisher ports.EventPublisher,
	policy CachePolicy,
) *ContentService {
	return &ContentService{
		posts:     posts,
		users:     users,
		cache:     cache,
		publisher: publisher,
		views:     NewReadThrough[domain.PostView](cache, policy.PostTTL, policy.OpTimeout),
		opTimeout: policy.OpTimeout,
		now:       time.Now,
	}
}

func (s *ContentService) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (*domain.PostView, error) {
	post, err := domain.NewPost(cmd.UserID, cmd.PhotoURL, cmd.ThumbnailURL, cmd.Caption)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}

	view := post.View(owner.Author())
	s.views.Put(ctx, postKey(post.ID), view)
	// PostCount du profil en cache
	invalidate(ctx, s.cache, s.opTimeout, userKey(cmd.UserID))

	// Best effort : la donnée est déjà sauvée
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		slog.Warn("⚠️ Failed to publish post created", "post_id", post.ID, "error", err)
	}
	return &view, nil
}

// GetPost : cache d'abord. Un propriétaire absent est une incohérence, pas une dégradation.
func (s *ContentService) GetPost(ctx context.Context, postID string) (*domain.PostView, error) {
	if postID == "" {
		return nil, domain.ErrInvalidID
	}
	view, err := s.views.Get(ctx, postKey(postID), func(ctx context.Context) (domain.PostView, bool, error) {
		v, err := s.loadView(ctx, postID)
		return v, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *ContentService) LikePost(ctx context.Context, postID, userID string) (*domain.PostView, error) {
	if postID == "" || userID == "" {
		return nil, domain.ErrInvalidID
	}

	// Arête + compteur dans la même unité, l'arête fait foi
	post, err := s.posts.AddLike(ctx, domain.Like{UserID: userID, PostID: postID, CreatedAt: s.now().UTC()})
	if err != nil {
		return nil, err
	}
	view := s.refreshView(ctx, post)

	if err := s.publisher.PublishPostLiked(ctx, post, userID); err != nil {
		slog.Warn("⚠️ Failed to publish like", "post_id", postID, "user_id", userID, "error", err)
	}
	return view, nil
}

func (s *ContentService) UnlikePost(ctx context.Context, postID, userID string) (*domain.PostView, error) {
	if postID == "" || userID == "" {
		return nil, domain.ErrInvalidID
	}

	post, floored, err := s.posts.RemoveLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if floored {
		// le compteur n'a pas bougé alors qu'une arête existait
		slog.Warn("🚨 Like counter already at zero", "post_id", postID, "user_id", userID, "error", domain.ErrLikeCountDrift)
	}
	view := s.refreshView(ctx, post)

	if err := s.publisher.PublishPostUnliked(ctx, post, userID); err != nil {
		slog.Warn("⚠️ Failed to publish unlike", "post_id", postID, "user_id", userID, "error", err)
	}
	return view, nil
}

// CheckLikeCount détecte une dérive entre like_count et les arêtes. Pas de réparation.
func (s *ContentService) CheckLikeCount(ctx context.Context, postID string) error {
	if postID == "" {
		return domain.ErrInvalidID
	}
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	edges, err := s.posts.CountLikes(ctx, postID)
	if err != nil {
		return err
	}
	if post.LikeCount != edges {
		return fmt.Errorf("post %s: like_count=%d edges=%d: %w", postID, post.LikeCount, edges, domain.ErrLikeCountDrift)
	}
	return nil
}

func (s *ContentService) ListUserPosts(ctx context.Context, userID string, page domain.PageRequest) (*domain.Page[domain.PostView], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	posts, total, err := s.posts.ListByAuthors(ctx, []string{userID}, page)
	if err != nil {
		return nil, err
	}

	author := owner.Author()
	items := make([]domain.PostView, 0, len(posts))
	for _, p := range posts {
		items = append(items, p.View(author))
	}
	return &domain.Page[domain.PostView]{Items: items, Page: page.Page, Size: page.Size, Total: total}, nil
}

// InvalidateAuthorPosts supprime les vues en cache de tous les posts d'un auteur,
// par lots. Contrairement aux invalidations inline, l'erreur remonte (redelivery côté consumer).
func (s *ContentService) InvalidateAuthorPosts(ctx context.Context, authorID string) error {
	if authorID == "" {
		return domain.ErrInvalidID
	}

	req := domain.PageRequest{Page: 0, Size: invalidationBatchSize}
	for {
		posts, total, err := s.posts.ListByAuthors(ctx, []string{authorID}, req)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}

		keys := make([]string, len(posts))
		for i, p := range posts {
			keys[i] = postKey(p.ID)
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("invalidate posts of %s: %w", authorID, err)
		}

		if int64(req.Offset()+len(posts)) >= total {
			return nil
		}
		req.Page++
	}
}

// refreshView compose la réponse depuis le post renvoyé par la transaction, jamais
// depuis le cache. Le like est déjà commité : un propriétaire introuvable donne une
// vue avec l'auteur sentinelle, non mise en cache.
func (s *ContentService) refreshView(ctx context.Context, post *domain.Post) *domain.PostView {
	key := postKey(post.ID)
	s.views.Invalidate(ctx, key)

	owner, err := s.users.GetByID(ctx, post.UserID)
	if err != nil {
		slog.Warn("⚠️ Owner lookup failed after like change", "post_id", post.ID, "owner_id", post.UserID, "error", err)
		view := post.View(domain.UnknownAuthor(post.UserID))
		return &view
	}

	view := post.View(owner.Author())
	s.views.Put(ctx, key, view)
	return &view
}

func (s *ContentService) loadView(ctx context.Context, postID string) (domain.PostView, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return domain.PostView{}, err
	}
	owner, err := s.users.GetByID(ctx, post.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.PostView{}, fmt.Errorf("owner %s of post %s: %w", post.UserID, postID, domain.ErrUserNotFound)
		}
		return domain.PostView{}, err
	}
	return post.View(owner.Author()), nil
}
