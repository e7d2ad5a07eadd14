package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// --- USERS ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Users.Register(r.Context(), ports.RegisterCmd{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, toAuthResponse(res))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Users.Login(r.Context(), ports.LoginCmd{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, toAuthResponse(res))
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Users.SearchUsers(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, toPageResponse(res))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Users.GetUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, profile)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateProfileRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.svc.Users.UpdateProfile(r.Context(), ports.UpdateProfileCmd{
		ActorID:           actorID,
		UserID:            r.PathValue("userID"),
		FullName:          req.FullName,
		Bio:               req.Bio,
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, profile)
}

func (s *Server) listUserPosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Content.ListUserPosts(r.Context(), r.PathValue("userID"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, toPageResponse(res))
}

// --- GRAPH ---

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.svc.Graph.Follow(r.Context(), actorID, r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, f)
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Graph.Unfollow(r.Context(), actorID, r.PathValue("userID")); err != nil {
		writeError(w, r, err)
		return
	}
	message(w, "unfollowed")
}

func (s *Server) following(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Graph.Following(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, map[string]any{"user_id": r.PathValue("userID"), "following": ids})
}

func (s *Server) followers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Graph.Followers(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, map[string]any{"user_id": r.PathValue("userID"), "followers": ids})
}

func (s *Server) isFollowing(w http.ResponseWriter, r *http.Request) {
	following, err := s.svc.Graph.IsFollowing(r.Context(), r.PathValue("userID"), r.PathValue("targetID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, map[string]bool{"following": following})
}

// --- CONTENT ---

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createPostRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.svc.Content.CreatePost(r.Context(), ports.CreatePostCmd{
		UserID:       actorID,
		PhotoURL:     req.PhotoURL,
		ThumbnailURL: req.ThumbnailURL,
		Caption:      req.Caption,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, view)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Content.GetPost(r.Context(), r.PathValue("postID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, view)
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.svc.Content.LikePost(r.Context(), r.PathValue("postID"), actorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, view)
}

func (s *Server) unlikePost(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.svc.Content.UnlikePost(r.Context(), r.PathValue("postID"), actorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, view)
}

// checkLikeCount : une dérive est un résultat, pas une panne (200 + consistent=false).
func (s *Server) checkLikeCount(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postID")
	err := s.svc.Content.CheckLikeCount(r.Context(), postID)
	switch {
	case errors.Is(err, domain.ErrLikeCountDrift):
		ok(w, map[string]any{"post_id": postID, "consistent": false})
	case err != nil:
		writeError(w, r, err)
	default:
		ok(w, map[string]any{"post_id": postID, "consistent": true})
	}
}

// --- FEED ---

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	feed, err := s.svc.Feed.GetUserFeed(r.Context(), actorID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, toPageResponse(feed))
}
