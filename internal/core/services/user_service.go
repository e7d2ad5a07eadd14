package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// UserService implémente ports.UserService : inscription, login, profils.
type UserService struct {
	users     ports.UserRepository
	posts     ports.PostRepository
	follows   ports.FollowRepository
	hasher    ports.PasswordHasher
	tokens    ports.TokenProvider
	publisher ports.EventPublisher
	profiles  *ReadThrough[domain.UserProfile]
}

func NewUserService(
	users ports.UserRepository,
	posts ports.PostRepository,
	follows ports.FollowRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenProvider,
	publisher ports.EventPublisher,
	cache ports.Cache,
	policy CachePolicy,
) *UserService {
	return &UserService{
		users:     users,
		posts:     posts,
		follows:   follows,
		hasher:    hasher,
		tokens:    tokens,
		publisher: publisher,
		profiles:  NewReadThrough[domain.UserProfile](cache, policy.UserTTL, policy.OpTimeout),
	}
}

// --- AUTHENTIFICATION ---

func (s *UserService) Register(ctx context.Context, cmd ports.RegisterCmd) (*ports.AuthResponse, error) {
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return nil, err
	}

	// 1. Domaine d'abord : on ne paie pas Argon2 pour une requête invalide
	user, err := domain.NewUser(cmd.Username, cmd.Email, "", cmd.FullName)
	if err != nil {
		return nil, err
	}

	// 2. Fail fast sur l'unicité. La contrainte UNIQUE de la DB reste la sécurité ultime.
	taken, err := s.users.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}
	taken, err = s.users.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}

	// 3. Hachage
	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}
	user.PasswordHash = hash

	// 4. Persistance
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	token, expiresIn, err := s.tokens.Generate(user)
	if err != nil {
		// le user existe, le client pourra se reconnecter
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	if err := s.publisher.PublishUserRegistered(ctx, user); err != nil {
		slog.Warn("⚠️ Failed to publish user registered", "user_id", user.ID, "error", err)
	}

	return &ports.AuthResponse{
		User:        user.Profile(0, 0, 0),
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}, nil
}

func (s *UserService) Login(ctx context.Context, cmd ports.LoginCmd) (*ports.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(cmd.Email))
	if err != nil {
		// On ne dit pas si c'est l'email ou le mot de passe
		if domain.IsNotFound(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, cmd.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresIn, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("login token gen failed: %w", err)
	}

	profile, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &ports.AuthResponse{User: *profile, AccessToken: token, ExpiresIn: expiresIn}, nil
}

func (s *UserService) ValidateToken(_ context.Context, token string) (string, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		slog.Debug("token rejected", "error", err)
		return "", domain.ErrInvalidToken
	}
	return userID, nil
}

// --- PROFILS ---

// GetUser : cache user:{id}, compteurs recalculés à chaque miss.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	profile, err := s.profiles.Get(ctx, userKey(userID), func(ctx context.Context) (domain.UserProfile, bool, error) {
		p, err := s.loadProfile(ctx, userID)
		return p, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, cmd ports.UpdateProfileCmd) (*domain.UserProfile, error) {
	if cmd.UserID == "" {
		return nil, domain.ErrInvalidID
	}
	if cmd.ActorID != cmd.UserID {
		return nil, domain.ErrForbidden
	}

	user, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if err := user.UpdateProfile(cmd.FullName, cmd.Bio, cmd.ProfilePictureURL); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.profiles.Invalidate(ctx, userKey(user.ID))

	// Les vues de posts embarquent l'auteur : le consumer les invalide en asynchrone
	if err := s.publisher.PublishUserUpdated(ctx, user.ID); err != nil {
		slog.Warn("⚠️ Failed to publish user updated", "user_id", user.ID, "error", err)
	}

	return s.GetUser(ctx, user.ID)
}

func (s *UserService) SearchUsers(ctx context.Context, query string, page domain.PageRequest) (*domain.Page[domain.Author], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		empty := domain.EmptyPage[domain.Author](page)
		return &empty, nil
	}

	users, total, err := s.users.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Author, 0, len(users))
	for _, u := range users {
		items = append(items, u.Author())
	}
	return &domain.Page[domain.Author]{Items: items, Page: page.Page, Size: page.Size, Total: total}, nil
}

func (s *UserService) loadProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if !user.IsActive {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}

	posts, err := s.posts.CountByAuthor(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	followers, err := s.follows.CountFollowers(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	following, err := s.follows.CountFollowing(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return user.Profile(posts, followers, following), nil
}
