package rest

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var (
	userCtxKey  = &contextKey{"user_id"}
	routeCtxKey = &contextKey{"route"}
)

const UserIDHeader = "X-User-Id"

// UserIDFromContext renvoie l'utilisateur authentifié, "" pour une requête anonyme.
func UserIDFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(userCtxKey).(string)
	return raw
}

// authenticate résout l'identité sans l'exiger : les routes publiques passent,
// les handlers protégés appellent requireUser.
func authenticate(users ports.UserService, trustUserHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""

			if header := r.Header.Get("Authorization"); header != "" {
				token, found := strings.CutPrefix(header, "Bearer ")
				if !found || token == "" {
					fail(w, http.StatusUnauthorized, "invalid token format")
					return
				}
				id, err := users.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, r, err)
					return
				}
				userID = id
			} else if trustUserHeader {
				// Derrière une gateway qui a déjà authentifié
				userID = r.Header.Get(UserIDHeader)
			}

			if userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), userCtxKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireUser(r *http.Request) (string, error) {
	if id := UserIDFromContext(r.Context()); id != "" {
		return id, nil
	}
	return "", domain.ErrUnauthenticated
}

// withTimeout borne la durée d'une requête : les services voient un
// context.DeadlineExceeded qui remonte en 503.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- RATE LIMIT (token bucket par IP) ---

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     3 * time.Minute,
		now:     time.Now,
	}
}

func (l *ipRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, found := l.clients[key]
	if !found {
		// Purge paresseuse des clients inactifs
		if len(l.clients) >= 10_000 {
			for k, v := range l.clients {
				if now.Sub(v.lastSeen) > l.ttl {
					delete(l.clients, k)
				}
			}
		}
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func rateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if perSecond <= 0 {
			return next
		}
		limiter := newIPRateLimiter(perSecond, burst)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientIP(r)) {
				rateLimitedTotal.Inc()
				w.Header().Set("Retry-After", "1")
				fail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- METRICS ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metrics étiquette par pattern de route (pas par path brut : cardinalité bornée).
// Le pattern est renseigné plus bas dans la chaîne par Server.route.
func metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := "unmatched"
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeCtxKey, &route)))

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
