package rest

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Stubs des ports primaires : chaque test ne branche que les fonctions utiles.

type stubUsers struct {
	register      func(ports.RegisterCmd) (*ports.AuthResponse, error)
	login         func(ports.LoginCmd) (*ports.AuthResponse, error)
	validateToken func(string) (string, error)
	getUser       func(string) (*domain.UserProfile, error)
	updateProfile func(ports.UpdateProfileCmd) (*domain.UserProfile, error)
	search        func(string, domain.PageRequest) (*domain.Page[domain.Author], error)
}

func (s *stubUsers) Register(_ context.Context, cmd ports.RegisterCmd) (*ports.AuthResponse, error) {
	return s.register(cmd)
}

func (s *stubUsers) Login(_ context.Context, cmd ports.LoginCmd) (*ports.AuthResponse, error) {
	return s.login(cmd)
}

func (s *stubUsers) ValidateToken(_ context.Context, token string) (string, error) {
	if s.validateToken == nil {
		return "", domain.ErrInvalidToken
	}
	return s.validateToken(token)
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*domain.UserProfile, error) {
	return s.getUser(id)
}

func (s *stubUsers) UpdateProfile(_ context.Context, cmd ports.UpdateProfileCmd) (*domain.UserProfile, error) {
	return s.updateProfile(cmd)
}

func (s *stubUsers) SearchUsers(_ context.Context, q string, page domain.PageRequest) (*domain.Page[domain.Author], error) {
	return s.search(q, page)
}

type stubGraph struct {
	follow      func(a, b string) (*domain.Follow, error)
	unfollow    func(a, b string) error
	following   func(id string) ([]string, error)
	isFollowing func(a, b string) (bool, error)
}

func (s *stubGraph) Follow(_ context.Context, a, b string) (*domain.Follow, error) { return s.follow(a, b) }
func (s *stubGraph) Unfollow(_ context.Context, a, b string) error                 { return s.unfollow(a, b) }
func (s *stubGraph) Following(_ context.Context, id string) ([]string, error)      { return s.following(id) }
func (s *stubGraph) Followers(_ context.Context, id string) ([]string, error)      { return []string{}, nil }
func (s *stubGraph) IsFollowing(_ context.Context, a, b string) (bool, error) {
	return s.isFollowing(a, b)
}

type stubContent struct {
	createPost func(ports.CreatePostCmd) (*domain.PostView, error)
	getPost    func(string) (*domain.PostView, error)
	like       func(postID, userID string) (*domain.PostView, error)
	unlike     func(postID, userID string) (*domain.PostView, error)
	check      func(string) error
}

func (s *stubContent) CreatePost(_ context.Context, cmd ports.CreatePostCmd) (*domain.PostView, error) {
	return s.createPost(cmd)
}

func (s *stubContent) GetPost(_ context.Context, id string) (*domain.PostView, error) {
	return s.getPost(id)
}

func (s *stubContent) LikePost(_ context.Context, postID, userID string) (*domain.PostView, error) {
	return s.like(postID, userID)
}

func (s *stubContent) UnlikePost(_ context.Context, postID, userID string) (*domain.PostView, error) {
	return s.unlike(postID, userID)
}

func (s *stubContent) CheckLikeCount(_ context.Context, id string) error { return s.check(id) }

func (s *stubContent) ListUserPosts(_ context.Context, _ string, page domain.PageRequest) (*domain.Page[domain.PostView], error) {
	p := domain.EmptyPage[domain.PostView](page)
	return &p, nil
}

func (s *stubContent) InvalidateAuthorPosts(context.Context, string) error { return nil }

type stubFeed struct {
	get func(userID string, page domain.PageRequest) (*domain.Page[domain.PostView], error)
}

func (s *stubFeed) GetUserFeed(_ context.Context, userID string, page domain.PageRequest) (*domain.Page[domain.PostView], error) {
	return s.get(userID, page)
}
