package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxCaptionLength = 2200

type Post struct {
	ID           string
	UserID       string
	PhotoURL     string
	ThumbnailURL string
	Caption      string
	LikeCount    int64
	CommentCount int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PostView est la vue composée (post + auteur) servie par GetPost et par le feed.
type PostView struct {
	ID           string    `json:"id"`
	PhotoURL     string    `json:"photo_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Caption      string    `json:"caption"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	Author       Author    `json:"author"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Like struct {
	UserID    string
	PostID    string
	CreatedAt time.Time
}

// NewPost crée un post avec des compteurs à zéro.
func NewPost(userID, photoURL, thumbnailURL, caption string) (*Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidID
	}
	photoURL = strings.TrimSpace(photoURL)
	if photoURL == "" {
		return nil, ErrInvalidPhotoURL
	}
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return nil, ErrInvalidCaption
	}

	now := time.Now().UTC()
	return &Post{
		ID:           uuid.NewString(),
		UserID:       userID,
		PhotoURL:     photoURL,
		ThumbnailURL: strings.TrimSpace(thumbnailURL),
		Caption:      caption,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *Post) View(author Author) PostView {
	return PostView{
		ID:           p.ID,
		PhotoURL:     p.PhotoURL,
		ThumbnailURL: p.ThumbnailURL,
		Caption:      p.Caption,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		Author:       author,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
