package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
)

// businessAccountResolver is implemented by the Instagram client
type businessAccountResolver interface {
	BusinessAccount(ctx context.Context, pageID, pageToken string) (models.BusinessAccount, error)
}

type createPostRequest struct {
	Text string `json:"text"`
}

func unsupported(platform, operation string) error {
	return fmt.Errorf("%w: %s does not offer %s", sources.ErrUnsupported, platform, operation)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	src, err := s.sourceFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lister, ok := src.(sources.ConversationLister)
	if !ok {
		writeError(w, r, unsupported(src.GetName(), "conversations"))
		return
	}

	conversations, err := lister.FetchConversations(r.Context(), credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	writeData(w, conversations)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	src, err := s.sourceFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lister, ok := src.(sources.CommentLister)
	if !ok {
		writeError(w, r, unsupported(src.GetName(), "comment listing"))
		return
	}

	comments, err := lister.FetchComments(r.Context(), mux.Vars(r)["post_id"], credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if comments == nil {
		comments = []models.RawPost{}
	}
	writeData(w, comments)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	src, err := s.sourceFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	publisher, ok := src.(sources.Publisher)
	if !ok {
		writeError(w, r, unsupported(src.GetName(), "publishing"))
		return
	}

	var req createPostRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, badRequest("text must not be empty"))
		return
	}

	result, err := publisher.CreatePost(r.Context(), req.Text, credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"platform": src.GetName(),
		"post_id":  result.RemoteID,
	}).Info("Published post")
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: result})
}

func (s *Server) handleBusinessAccount(w http.ResponseWriter, r *http.Request) {
	params, err := required(r, "page_id", "page_access_token")
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, ok := s.monitor.Sources().Get(models.PlatformInstagram)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", sources.ErrUnsupported, models.PlatformInstagram))
		return
	}
	resolver, ok := src.(businessAccountResolver)
	if !ok {
		writeError(w, r, unsupported(src.GetName(), "business account lookup"))
		return
	}

	account, err := resolver.BusinessAccount(r.Context(), params["page_id"], params["page_access_token"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, account)
}
