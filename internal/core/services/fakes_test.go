package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Fakes en mémoire des ports secondaires, avec injection d'erreurs.

var (
	_ ports.UserService    = (*UserService)(nil)
	_ ports.GraphService   = (*GraphService)(nil)
	_ ports.ContentService = (*ContentService)(nil)
	_ ports.FeedService    = (*FeedService)(nil)
)

// --- Users ---

type fakeUsers struct {
	mu         sync.Mutex
	byID       map[string]*domain.User
	getByIDs   int
	getByIDErr error
	batchErr   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*domain.User{}}
}

func (f *fakeUsers) add(username string) *domain.User {
	u, err := domain.NewUser(username, username+"@example.com", "hashed:password", strings.ToUpper(username))
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsers) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

func (f *fakeUsers) Save(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []string) (map[string]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByIDs++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeUsers) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Search(_ context.Context, query string, page domain.PageRequest) ([]*domain.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	var matches []*domain.User
	for _, u := range f.byID {
		if u.IsActive && (strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q)) {
			cp := *u
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Username < matches[j].Username })
	return window(matches, page), int64(len(matches)), nil
}

// --- Posts + likes ---

type likeKey struct{ userID, postID string }

type fakePosts struct {
	mu      sync.Mutex
	byID    map[string]*domain.Post
	likes   map[likeKey]time.Time
	listErr error
}

func newFakePosts() *fakePosts {
	return &fakePosts{byID: map[string]*domain.Post{}, likes: map[likeKey]time.Time{}}
}

// seed insère un post avec une date contrôlée
func (f *fakePosts) seed(userID, caption string, at time.Time) *domain.Post {
	p, err := domain.NewPost(userID, "https://cdn.example.com/"+caption+".jpg", "", caption)
	if err != nil {
		panic(err)
	}
	p.CreatedAt, p.UpdatedAt = at, at
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
	return p
}

func (f *fakePosts) setLikeCount(postID string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[postID].LikeCount = n
}

func (f *fakePosts) Save(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *post
	f.byID[post.ID] = &cp
	return nil
}

func (f *fakePosts) FindByID(_ context.Context, postID string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[postID]
	if !ok || !p.IsActive {
		return nil, domain.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) ListByAuthors(_ context.Context, authorIDs []string, page domain.PageRequest) ([]*domain.Post, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	authors := make(map[string]bool, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = true
	}
	var matches []*domain.Post
	for _, p := range f.byID {
		if p.IsActive && authors[p.UserID] {
			cp := *p
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return window(matches, page), int64(len(matches)), nil
}

func (f *fakePosts) CountByAuthor(_ context.Context, authorID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.byID {
		if p.IsActive && p.UserID == authorID {
			n++
		}
	}
	return n, nil
}

func (f *fakePosts) AddLike(_ context.Context, like domain.Like) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[like.PostID]
	if !ok || !p.IsActive {
		return nil, domain.ErrPostNotFound
	}
	k := likeKey{like.UserID, like.PostID}
	if _, exists := f.likes[k]; exists {
		return nil, domain.ErrAlreadyLiked
	}
	f.likes[k] = like.CreatedAt
	p.LikeCount++
	cp := *p
	return &cp, nil
}

func (f *fakePosts) RemoveLike(_ context.Context, postID, userID string) (*domain.Post, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[postID]
	if !ok || !p.IsActive {
		return nil, false, domain.ErrPostNotFound
	}
	k := likeKey{userID, postID}
	if _, exists := f.likes[k]; !exists {
		return nil, false, domain.ErrNotLiked
	}
	delete(f.likes, k)
	floored := p.LikeCount == 0
	if !floored {
		p.LikeCount--
	}
	cp := *p
	return &cp, floored, nil
}

func (f *fakePosts) HasLiked(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.likes[likeKey{userID, postID}]
	return ok, nil
}

func (f *fakePosts) CountLikes(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.likes {
		if k.postID == postID {
			n++
		}
	}
	return n, nil
}

// --- Follows ---

type followKey struct{ follower, following string }

type fakeFollows struct {
	mu    sync.Mutex
	edges map[followKey]time.Time
	calls int
}

func newFakeFollows() *fakeFollows {
	return &fakeFollows{edges: map[followKey]time.Time{}}
}

func (f *fakeFollows) CreateFollow(_ context.Context, follow *domain.Follow) (*domain.Follow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := followKey{follow.FollowerID, follow.FollowingID}
	if _, ok := f.edges[k]; ok {
		return nil, domain.ErrAlreadyFollowing
	}
	f.edges[k] = follow.CreatedAt
	cp := *follow
	return &cp, nil
}

func (f *fakeFollows) DeleteFollow(_ context.Context, followerID, followingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := followKey{followerID, followingID}
	if _, ok := f.edges[k]; !ok {
		return domain.ErrNotFollowing
	}
	delete(f.edges, k)
	return nil
}

func (f *fakeFollows) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.edges[followKey{followerID, followingID}]
	return ok, nil
}

func (f *fakeFollows) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var ids []string
	for k := range f.edges {
		if k.follower == userID {
			ids = append(ids, k.following)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeFollows) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for k := range f.edges {
		if k.following == userID {
			ids = append(ids, k.follower)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeFollows) CountFollowing(ctx context.Context, userID string) (int64, error) {
	ids, err := f.FollowingIDs(ctx, userID)
	return int64(len(ids)), err
}

func (f *fakeFollows) CountFollowers(ctx context.Context, userID string) (int64, error) {
	ids, err := f.FollowerIDs(ctx, userID)
	return int64(len(ids)), err
}

// --- Cache avec horloge contrôlable ---

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     time.Time
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	delErr  error
	hits    int
	misses  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: map[string]cacheEntry{},
		ttls:    map[string]time.Duration{},
		now:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (c *fakeCache) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now.Before(e.expiresAt)
}

func (c *fakeCache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, expiresAt: c.now.Add(time.Hour)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[key]
	if !ok || !c.now.Before(e.expiresAt) {
		c.misses++
		return nil, domain.ErrCacheMiss
	}
	c.hits++
	return e.data, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = cacheEntry{data: value, expiresAt: c.now.Add(ttl)}
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// --- Publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *fakePublisher) record(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, name)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePublisher) PublishUserRegistered(context.Context, *domain.User) error {
	return p.record("user.registered")
}

func (p *fakePublisher) PublishUserUpdated(context.Context, string) error {
	return p.record("user.updated")
}

func (p *fakePublisher) PublishPostCreated(context.Context, *domain.Post) error {
	return p.record("post.created")
}

func (p *fakePublisher) PublishPostLiked(context.Context, *domain.Post, string) error {
	return p.record("post.liked")
}

func (p *fakePublisher) PublishPostUnliked(context.Context, *domain.Post, string) error {
	return p.record("post.unliked")
}

func (p *fakePublisher) PublishFollowed(context.Context, *domain.Follow) error {
	return p.record("graph.followed")
}

func (p *fakePublisher) PublishUnfollowed(context.Context, string, string) error {
	return p.record("graph.unfollowed")
}

// --- Sécurité ---

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("invalid password")
	}
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Generate(user *domain.User) (string, time.Duration, error) {
	return "token-" + user.ID, 15 * time.Minute, nil
}

func (fakeTokens) Validate(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return "", errors.New("bad token")
	}
	return id, nil
}

// --- Helpers ---

func window[T any](items []T, page domain.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// env regroupe les fakes et les services construits dessus.
type env struct {
	users     *fakeUsers
	posts     *fakePosts
	follows   *fakeFollows
	cache     *fakeCache
	publisher *fakePublisher
	policy    CachePolicy

	userSvc    *UserService
	graphSvc   *GraphService
	contentSvc *ContentService
	feedSvc    *FeedService
}

func newEnv() *env {
	e := &env{
		users:     newFakeUsers(),
		posts:     newFakePosts(),
		follows:   newFakeFollows(),
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		policy:    DefaultCachePolicy(),
	}
	e.userSvc = NewUserService(e.users, e.posts, e.follows, fakeHasher{}, fakeTokens{}, e.publisher, e.cache, e.policy)
	e.graphSvc = NewGraphService(e.follows, e.users, e.cache, e.publisher, e.policy)
	e.contentSvc = NewContentService(e.posts, e.users, e.cache, e.publisher, e.policy)
	e.feedSvc = NewFeedService(e.graphSvc, e.posts, e.users, e.cache, e.policy)
	return e
}
