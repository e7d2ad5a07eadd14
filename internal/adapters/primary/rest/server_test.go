package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type fixture struct {
	users   *stubUsers
	graph   *stubGraph
	content *stubContent
	feed    *stubFeed
	opts    Options
}

func newFixture() *fixture {
	return &fixture{
		users:   &stubUsers{},
		graph:   &stubGraph{},
		content: &stubContent{},
		feed:    &stubFeed{},
		opts: Options{
			RequestTimeout:  time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
			TrustUserHeader: true,
		},
	}
}

func (f *fixture) handler() http.Handler {
	return NewHandler(Services{Users: f.users, Graph: f.graph, Content: f.content, Feed: f.feed}, f.opts)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestRegister(t *testing.T) {
	f := newFixture()
	f.users.register = func(cmd ports.RegisterCmd) (*ports.AuthResponse, error) {
		assert.Equal(t, "alice", cmd.Username)
		return &ports.AuthResponse{
			User:        domain.UserProfile{ID: "u1", Username: "alice"},
			AccessToken: "tok",
			ExpiresIn:   15 * time.Minute,
		}, nil
	}

	rec, env := do(t, f.handler(), http.MethodPost, "/api/v1/users/register",
		`{"username":"alice","email":"alice@example.com","password":"password123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var data authResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "tok", data.AccessToken)
	assert.Equal(t, int64(900), data.ExpiresIn)
	assert.Equal(t, "u1", data.User.ID)
}

func TestRegister_ValidationErrors(t *testing.T) {
	f := newFixture()
	rec, env := do(t, f.handler(), http.MethodPost, "/api/v1/users/register",
		`{"username":"al","email":"nope","password":"short"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.ElementsMatch(t, []string{
		"username must be at least 3 characters",
		"email must be a valid email",
		"password must be at least 8 characters",
	}, env.Errors)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture()
	rec, _ := do(t, f.handler(), http.MethodPost, "/api/v1/users/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, f.handler(), http.MethodPost, "/api/v1/users/login", `{"email":"a@b.co","password":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{domain.ErrPostNotFound, http.StatusNotFound, "post not found"},
		{domain.ErrAlreadyLiked, http.StatusConflict, "post already liked"},
		{domain.ErrNotLiked, http.StatusConflict, "post not liked"},
		{domain.ErrForbidden, http.StatusForbidden, "operation not allowed"},
		{domain.ErrInvalidID, http.StatusBadRequest, "id cannot be empty"},
		{domain.NewTransient("redis: get", errors.New("i/o timeout")), http.StatusServiceUnavailable, "service temporarily unavailable"},
		{errors.New("pq: secret detail"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			f := newFixture()
			f.content.like = func(string, string) (*domain.PostView, error) { return nil, tc.err }

			rec, env := do(t, f.handler(), http.MethodPost, "/api/v1/posts/p1/like", "", UserIDHeader, "u1")
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.msg, env.Message)
		})
	}
}

func TestAuth(t *testing.T) {
	f := newFixture()
	f.users.validateToken = func(token string) (string, error) {
		if token == "good" {
			return "u1", nil
		}
		return "", domain.ErrInvalidToken
	}
	f.feed.get = func(userID string, page domain.PageRequest) (*domain.Page[domain.PostView], error) {
		p := domain.EmptyPage[domain.PostView](page)
		p.Items = []domain.PostView{{ID: "p-" + userID}}
		return &p, nil
	}
	h := f.handler()

	rec, env := do(t, h, http.MethodGet, "/api/v1/feed", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", env.Message)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/feed", "", "Authorization", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/feed", "", "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/feed", "", "Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"p-u1"`)

	// Le header de confiance ne l'emporte jamais sur un token
	rec, env = do(t, h, http.MethodGet, "/api/v1/feed", "", "Authorization", "Bearer good", UserIDHeader, "u9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"p-u1"`)
}

func TestAuth_UntrustedHeaderIgnored(t *testing.T) {
	f := newFixture()
	f.opts.TrustUserHeader = false

	rec, _ := do(t, f.handler(), http.MethodGet, "/api/v1/feed", "", UserIDHeader, "u1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeed_Pagination(t *testing.T) {
	f := newFixture()
	var got domain.PageRequest
	f.feed.get = func(_ string, page domain.PageRequest) (*domain.Page[domain.PostView], error) {
		got = page
		p := domain.EmptyPage[domain.PostView](page)
		p.Total = 45
		return &p, nil
	}
	h := f.handler()

	rec, env := do(t, h, http.MethodGet, "/api/v1/feed", "", UserIDHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PageRequest{Page: 0, Size: domain.DefaultPageSize}, got)

	var page pageResponse[domain.PostView]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.NotNil(t, page.Items)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/feed?page=2&size=10", "", UserIDHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PageRequest{Page: 2, Size: 10}, got)

	for _, q := range []string{"size=0", "size=101", "page=-1", "page=abc", "page=9223372036854775807"} {
		rec, _ = do(t, h, http.MethodGet, "/api/v1/feed?"+q, "", UserIDHeader, "u1")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestFollowAndUnfollow(t *testing.T) {
	f := newFixture()
	f.graph.follow = func(a, b string) (*domain.Follow, error) {
		return &domain.Follow{FollowerID: a, FollowingID: b, CreatedAt: time.Now()}, nil
	}
	f.graph.unfollow = func(a, b string) error { return domain.ErrNotFollowing }
	f.graph.isFollowing = func(a, b string) (bool, error) { return a == "u1" && b == "u2", nil }
	h := f.handler()

	rec, env := do(t, h, http.MethodPost, "/api/v1/users/u2/follow", "", UserIDHeader, "u1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), `"follower_id":"u1"`)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/users/u2/follow", "", UserIDHeader, "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/users/u1/following/u2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"following":true}`, string(env.Data))
}

func TestUpdateProfile_PassesActor(t *testing.T) {
	f := newFixture()
	f.users.updateProfile = func(cmd ports.UpdateProfileCmd) (*domain.UserProfile, error) {
		if cmd.ActorID != cmd.UserID {
			return nil, domain.ErrForbidden
		}
		require.NotNil(t, cmd.Bio)
		return &domain.UserProfile{ID: cmd.UserID, Bio: *cmd.Bio}, nil
	}
	h := f.handler()

	rec, _ := do(t, h, http.MethodPut, "/api/v1/users/u2", `{"bio":"hi"}`, UserIDHeader, "u1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := do(t, h, http.MethodPut, "/api/v1/users/u1", `{"bio":"hi"}`, UserIDHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"bio":"hi"`)

	rec, _ = do(t, h, http.MethodPut, "/api/v1/users/u1", `{"profile_picture_url":"not a url"}`, UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePost(t *testing.T) {
	f := newFixture()
	f.content.createPost = func(cmd ports.CreatePostCmd) (*domain.PostView, error) {
		return &domain.PostView{ID: "p1", Caption: cmd.Caption, Author: domain.Author{ID: cmd.UserID}}, nil
	}
	h := f.handler()

	rec, env := do(t, h, http.MethodPost, "/api/v1/posts",
		`{"photo_url":"https://cdn.example.com/a.jpg","caption":"hello"}`, UserIDHeader, "u1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), `"caption":"hello"`)

	long := strings.Repeat("é", domain.MaxCaptionLength+1)
	rec, env = do(t, h, http.MethodPost, "/api/v1/posts",
		fmt.Sprintf(`{"photo_url":"https://cdn.example.com/a.jpg","caption":%q}`, long), UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"caption cannot exceed 2200 characters"}, env.Errors)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/posts", `{"caption":"x"}`, UserIDHeader, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckLikeCount(t *testing.T) {
	f := newFixture()
	f.content.check = func(id string) error {
		if id == "drifted" {
			return domain.ErrLikeCountDrift
		}
		return nil
	}
	h := f.handler()

	rec, env := do(t, h, http.MethodGet, "/api/v1/posts/drifted/consistency", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"post_id":"drifted","consistent":false}`, string(env.Data))

	_, env = do(t, h, http.MethodGet, "/api/v1/posts/p1/consistency", "")
	assert.JSONEq(t, `{"post_id":"p1","consistent":true}`, string(env.Data))
}

func TestRequestTimeout(t *testing.T) {
	f := newFixture()
	f.opts.RequestTimeout = 20 * time.Millisecond
	f.content.getPost = func(string) (*domain.PostView, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}

	rec, _ := do(t, f.handler(), http.MethodGet, "/api/v1/posts/p1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture()
	f.opts.RateLimit = 0.001
	f.opts.RateBurst = 1
	f.content.getPost = func(id string) (*domain.PostView, error) { return &domain.PostView{ID: id}, nil }
	h := f.handler()

	rec, _ := do(t, h, http.MethodGet, "/api/v1/posts/p1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/api/v1/posts/p1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", env.Message)
}

func TestIPRateLimiter_PerClient(t *testing.T) {
	l := newIPRateLimiter(0.001, 1)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
}

func TestProbesAndCORS(t *testing.T) {
	f := newFixture()
	f.content.getPost = func(id string) (*domain.PostView, error) { return &domain.PostView{ID: id}, nil }
	h := f.handler()

	rec, _ := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Une requête pour alimenter les compteurs
	do(t, h, http.MethodGet, "/api/v1/posts/p1", "")
	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `social_http_requests_total{method="GET",route="GET /api/v1/posts/{postID}",status="200"}`)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/posts/p1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	cors := httptest.NewRecorder()
	h.ServeHTTP(cors, req)
	assert.Equal(t, "http://localhost:3000", cors.Header().Get("Access-Control-Allow-Origin"))

	rec, env := do(t, h, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", env.Message)
}
