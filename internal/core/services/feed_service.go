package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// FeedService assemble le feed à la lecture (pas de fan-out) :
// posts des followees, created_at DESC, fenêtre [page*size, page*size+size).
type FeedService struct {
	graph  ports.GraphService
	posts  ports.PostRepository
	users  ports.UserRepository
	pages  *ReadThrough[domain.Page[domain.PostView]]
	tracer trace.Tracer
}

func NewFeedService(
	graph ports.GraphService,
	posts ports.PostRepository,
	users ports.UserRepository,
	cache ports.Cache,
	policy CachePolicy,
) *FeedService {
	return &FeedService{
		graph:  graph,
		posts:  posts,
		users:  users,
		pages:  NewReadThrough[domain.Page[domain.PostView]](cache, policy.FeedTTL, policy.OpTimeout),
		tracer: otel.Tracer("social-service/feed"),
	}
}

func (s *FeedService) GetUserFeed(ctx context.Context, userID string, req domain.PageRequest) (*domain.Page[domain.PostView], error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "feed.get_user_feed", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("page", req.Page),
		attribute.Int("size", req.Size),
	))
	defer span.End()

	page, err := s.pages.Get(ctx, feedKey(userID, req.Page, req.Size), func(ctx context.Context) (domain.Page[domain.PostView], bool, error) {
		return s.assemble(ctx, userID, req)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &page, nil
}

func (s *FeedService) assemble(ctx context.Context, userID string, req domain.PageRequest) (domain.Page[domain.PostView], bool, error) {
	// 1. Followees
	followees, err := s.graph.Following(ctx, userID)
	if err != nil {
		return domain.Page[domain.PostView]{}, false, err
	}
	if len(followees) == 0 {
		// Résultat vide mais valide : on le met en cache comme les autres
		return domain.EmptyPage[domain.PostView](req), true, nil
	}

	// 2. Posts des followees
	posts, total, err := s.posts.ListByAuthors(ctx, followees, req)
	if err != nil {
		return domain.Page[domain.PostView]{}, false, err
	}
	if len(posts) == 0 {
		empty := domain.EmptyPage[domain.PostView](req)
		empty.Total = total
		return empty, true, nil
	}

	// 3. Hydratation des auteurs en une seule requête
	ownerIDs := make([]string, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.UserID]; !ok {
			seen[p.UserID] = struct{}{}
			ownerIDs = append(ownerIDs, p.UserID)
		}
	}

	cacheable := true
	owners, err := s.users.GetByIDs(ctx, ownerIDs)
	if err != nil {
		// Page dégradée : servie, mais pas mise en cache
		slog.Warn("⚠️ Feed owner lookup failed, using placeholders", "user_id", userID, "error", err)
		owners = nil
		cacheable = false
	}

	items := make([]domain.PostView, 0, len(posts))
	for _, p := range posts {
		author := domain.UnknownAuthor(p.UserID)
		if u, ok := owners[p.UserID]; ok {
			author = u.Author()
		}
		items = append(items, p.View(author))
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("feed.items", len(items)), attribute.Int("feed.followees", len(followees)))

	return domain.Page[domain.PostView]{Items: items, Page: req.Page, Size: req.Size, Total: total}, cacheable, nil
}
