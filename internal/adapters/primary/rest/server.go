package rest

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type Services struct {
	Users   ports.UserService
	Graph   ports.GraphService
	Content ports.ContentService
	Feed    ports.FeedService
}

type Options struct {
	RequestTimeout  time.Duration
	RateLimit       float64 // requêtes/s par IP, 0 = désactivé
	RateBurst       int
	CORSOrigins     []string
	TrustUserHeader bool
}

// Server adapte l'API REST vers les ports primaires du domaine.
type Server struct {
	svc      Services
	validate *validator.Validate
	mux      *http.ServeMux
}

// NewHandler construit la chaîne complète : /api/v1 derrière les middlewares,
// /healthz et /metrics en direct.
func NewHandler(svc Services, opts Options) http.Handler {
	s := &Server{
		svc:      svc,
		validate: newValidator(),
		mux:      http.NewServeMux(),
	}
	s.routes()

	// Chaîne de Middlewares (de l'intérieur vers l'extérieur)
	var h http.Handler = s.mux
	h = authenticate(svc.Users, opts.TrustUserHeader)(h)
	h = withTimeout(opts.RequestTimeout)(h)
	h = rateLimit(opts.RateLimit, opts.RateBurst)(h)
	h = metrics(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", UserIDHeader, "traceparent", "baggage"},
		AllowCredentials: true,
	}).Handler(h)
	h = otelhttp.NewHandler(h, "social-api", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	root := http.NewServeMux()
	root.Handle("/api/", h)
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	root.Handle("GET /metrics", promhttp.Handler())
	return root
}

func (s *Server) routes() {
	// Users
	s.route("POST /api/v1/users/register", s.register)
	s.route("POST /api/v1/users/login", s.login)
	s.route("GET /api/v1/users/search", s.searchUsers)
	s.route("GET /api/v1/users/{userID}", s.getUser)
	s.route("PUT /api/v1/users/{userID}", s.updateProfile)
	s.route("GET /api/v1/users/{userID}/posts", s.listUserPosts)

	// Graph
	s.route("POST /api/v1/users/{userID}/follow", s.follow)
	s.route("DELETE /api/v1/users/{userID}/follow", s.unfollow)
	s.route("GET /api/v1/users/{userID}/following", s.following)
	s.route("GET /api/v1/users/{userID}/followers", s.followers)
	s.route("GET /api/v1/users/{userID}/following/{targetID}", s.isFollowing)

	// Content
	s.route("POST /api/v1/posts", s.createPost)
	s.route("GET /api/v1/posts/{postID}", s.getPost)
	s.route("POST /api/v1/posts/{postID}/like", s.likePost)
	s.route("DELETE /api/v1/posts/{postID}/like", s.unlikePost)
	s.route("GET /api/v1/posts/{postID}/consistency", s.checkLikeCount)

	// Feed
	s.route("GET /api/v1/feed", s.getFeed)

	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusNotFound, "route not found")
	})
}

// route enregistre le handler et publie son pattern pour le label Prometheus.
func (s *Server) route(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeCtxKey).(*string); ok {
			*label = pattern
		}
		h(w, r)
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Les messages d'erreur citent le nom JSON du champ
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
