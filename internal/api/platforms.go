package api

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	platform := platformVar(r)
	posts, inserted, err := s.monitor.FetchPlatform(r.Context(), platform, credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	logrus.WithField("platform", platform).Debugf("Fetched %d mentions, %d new", len(posts), inserted)
	if posts == nil {
		posts = []models.RawPost{}
	}
	writeData(w, posts)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	src, err := s.sourceFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := src.FetchPosts(r.Context(), credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if posts == nil {
		posts = []models.RawPost{}
	}
	writeData(w, posts)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	params, err := required(r, "post_id", "message")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.monitor.SendReply(r.Context(), platformVar(r), params["post_id"], params["message"], credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, result)
}

func (s *Server) handlePrivateReply(w http.ResponseWriter, r *http.Request) {
	params, err := required(r, "post_id", "message")
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := s.sourceFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := src.SendPrivateReply(r.Context(), params["post_id"], params["message"], credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, result)
}

// handleAllMentions fetches the three mention platforms concurrently. A
// failing platform yields an empty list and never fails the request.
func (s *Server) handleAllMentions(w http.ResponseWriter, r *http.Request) {
	platforms := []string{models.PlatformFacebook, models.PlatformInstagram, models.PlatformX}
	results := make([][]models.RawPost, len(platforms))

	var g errgroup.Group
	for i, platform := range platforms {
		g.Go(func() error {
			posts, _, err := s.monitor.FetchPlatform(r.Context(), platform, credentials(r))
			if err != nil {
				logrus.WithField("platform", platform).Errorf("Error fetching mentions: %v", err)
			}
			if posts == nil || err != nil {
				posts = []models.RawPost{}
			}
			results[i] = posts
			return nil
		})
	}
	_ = g.Wait()

	body := make(map[string][]models.RawPost, len(platforms))
	for i, platform := range platforms {
		body[platform] = results[i]
	}
	writeJSON(w, http.StatusOK, body)
}
