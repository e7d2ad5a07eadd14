package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxFullNameLength = 100
	MaxBioLength      = 500
	MinPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,50}$`)

// --- ENTITÉ ---

type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	FullName          string
	Bio               string
	ProfilePictureURL string
	IsVerified        bool
	IsActive          bool // soft delete / ban
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserProfile est la vue publique d'un user avec ses compteurs.
// C'est elle qui est mise en cache, jamais le hash du mot de passe.
type UserProfile struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	FullName          string    `json:"full_name"`
	Bio               string    `json:"bio"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	IsVerified        bool      `json:"is_verified"`
	PostCount         int64     `json:"post_count"`
	FollowerCount     int64     `json:"follower_count"`
	FollowingCount    int64     `json:"following_count"`
	CreatedAt         time.Time `json:"created_at"`
}

// Author regroupe les champs d'affichage du propriétaire d'un post.
type Author struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	FullName          string `json:"full_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	IsVerified        bool   `json:"is_verified"`
}

const (
	UnknownUsername = "unknown"
	UnknownFullName = "Unknown User"
)

// UnknownAuthor est la sentinelle utilisée par le feed quand le propriétaire est introuvable.
func UnknownAuthor(userID string) Author {
	return Author{ID: userID, Username: UnknownUsername, FullName: UnknownFullName}
}

func (a Author) IsUnknown() bool { return a.Username == UnknownUsername && a.FullName == UnknownFullName }

// --- FACTORY ---

// NewUser est le seul moyen de créer un user valide (ID + invariants).
func NewUser(username, email, passwordHash, fullName string) (*User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if utf8.RuneCountInString(fullName) > MaxFullNameLength {
		return nil, ErrInvalidFullName
	}

	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		FullName:     fullName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// --- COMPORTEMENTS ---

// UpdateProfile applique les champs non nil. Un pointeur nil = pas de changement.
func (u *User) UpdateProfile(fullName, bio, pictureURL *string) error {
	if fullName != nil {
		v := strings.TrimSpace(*fullName)
		if utf8.RuneCountInString(v) > MaxFullNameLength {
			return ErrInvalidFullName
		}
		u.FullName = v
	}
	if bio != nil {
		if utf8.RuneCountInString(*bio) > MaxBioLength {
			return ErrInvalidBio
		}
		u.Bio = *bio
	}
	if pictureURL != nil {
		u.ProfilePictureURL = strings.TrimSpace(*pictureURL)
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (u *User) Author() Author {
	return Author{
		ID:                u.ID,
		Username:          u.Username,
		FullName:          u.FullName,
		ProfilePictureURL: u.ProfilePictureURL,
		IsVerified:        u.IsVerified,
	}
}

func (u *User) Profile(posts, followers, following int64) UserProfile {
	return UserProfile{
		ID:                u.ID,
		Username:          u.Username,
		FullName:          u.FullName,
		Bio:               u.Bio,
		ProfilePictureURL: u.ProfilePictureURL,
		IsVerified:        u.IsVerified,
		PostCount:         posts,
		FollowerCount:     followers,
		FollowingCount:    following,
		CreatedAt:         u.CreatedAt,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword ne regarde que la longueur, le reste est du ressort du hasher.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	return nil
}
