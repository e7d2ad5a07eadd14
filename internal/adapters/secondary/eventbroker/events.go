package eventbroker

import "time"

const (
	StreamName     = "SOCIAL"
	SubjectPattern = "social.>" // Tous les events social.*

	SubjectUserRegistered = "social.user.registered"
	SubjectUserUpdated    = "social.user.updated"
	SubjectPostCreated    = "social.post.created"
	SubjectPostLiked      = "social.post.liked"
	SubjectPostUnliked    = "social.post.unliked"
	SubjectFollowed       = "social.graph.followed"
	SubjectUnfollowed     = "social.graph.unfollowed"
)

// Payloads JSON (contrat implicite avec les consommateurs)

type UserRegisteredEvent struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

type UserUpdatedEvent struct {
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PostCreatedEvent struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type PostLikeEvent struct {
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	UserID     string    `json:"user_id"`
	LikeCount  int64     `json:"like_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

type FollowEvent struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}
