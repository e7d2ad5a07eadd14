package domain

import (
	"context"
	"errors"
)

// Kind classe une erreur pour les adapters (HTTP, events) sans qu'ils connaissent chaque sentinelle.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindAlreadyExists
	KindAlreadyLiked
	KindNotLiked
	KindInconsistent
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindAlreadyLiked:
		return "already_liked"
	case KindNotLiked:
		return "not_liked"
	case KindInconsistent:
		return "inconsistent"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error porte un Kind. Les sentinelles sont des *Error comparées par identité (errors.Is).
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// --- ERREURS DU DOMAINE ---
var (
	// NotFound
	ErrUserNotFound     = newError(KindNotFound, "user not found")
	ErrFollowerNotFound = newError(KindNotFound, "follower not found")
	ErrPostNotFound     = newError(KindNotFound, "post not found")
	ErrNotFollowing     = newError(KindNotFound, "follow relation not found")

	// Conflits d'idempotence
	ErrAlreadyExists    = newError(KindAlreadyExists, "resource already exists")
	ErrUsernameTaken    = newError(KindAlreadyExists, "username already exists")
	ErrEmailTaken       = newError(KindAlreadyExists, "email already exists")
	ErrAlreadyFollowing = newError(KindAlreadyExists, "already following this user")
	ErrAlreadyLiked     = newError(KindAlreadyLiked, "post already liked")
	ErrNotLiked         = newError(KindNotLiked, "post not liked")

	// Compteur dérivé qui ne correspond plus aux arêtes
	ErrLikeCountDrift = newError(KindInconsistent, "like counter does not match like edges")

	// Auth
	ErrInvalidCredentials = newError(KindUnauthorized, "invalid email or password")
	ErrInvalidToken       = newError(KindUnauthorized, "invalid token")
	ErrUnauthenticated    = newError(KindUnauthorized, "authentication required")
	ErrForbidden          = newError(KindForbidden, "operation not allowed")

	// Validation
	ErrInvalidID       = newError(KindInvalid, "id cannot be empty")
	ErrInvalidEmail    = newError(KindInvalid, "invalid email format")
	ErrInvalidUsername = newError(KindInvalid, "username must be 3 to 50 characters (letters, digits, '_' or '.')")
	ErrInvalidFullName = newError(KindInvalid, "full name cannot exceed 100 characters")
	ErrInvalidBio      = newError(KindInvalid, "bio cannot exceed 500 characters")
	ErrInvalidPassword = newError(KindInvalid, "password must be at least 8 characters")
	ErrInvalidPhotoURL = newError(KindInvalid, "photo url is required")
	ErrInvalidCaption  = newError(KindInvalid, "caption cannot exceed 2200 characters")
	ErrSelfFollow      = newError(KindInvalid, "cannot follow yourself")
	ErrInvalidPage     = newError(KindInvalid, "page must be >= 0 and size between 1 and 100")
)

// ErrCacheMiss est le contrat du port Cache : clé absente ou expirée.
var ErrCacheMiss = errors.New("cache miss")

// NewTransient enveloppe un timeout ou une panne de connectivité. L'appelant peut réessayer.
func NewTransient(op string, err error) error {
	return &Error{Kind: KindTransient, Msg: op, Err: err}
}

// KindOf remonte la chaîne d'erreurs jusqu'au premier *Error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

func IsTransient(err error) bool { return KindOf(err) == KindTransient }

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
