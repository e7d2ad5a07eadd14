package domain

import "time"

// Follow est une arête orientée follower -> following, unique par paire.
type Follow struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewFollow(followerID, followingID string, at time.Time) (*Follow, error) {
	if followerID == "" || followingID == "" {
		return nil, ErrInvalidID
	}
	if followerID == followingID {
		return nil, ErrSelfFollow
	}
	return &Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: at.UTC()}, nil
}
