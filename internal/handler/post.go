package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/auth"
	"github.com/sakif/lumi/internal/service"
)

// PostHandler serves the feed, post creation and the like toggle.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

type postRequest struct {
	Action     string              `json:"action"`
	Caption    string              `json:"caption"`
	MediaType  string              `json:"media_type"`
	MediaFiles []service.MediaFile `json:"media_files"`
	Location   string              `json:"location"`
	IsPublic   *bool               `json:"is_public"`
	PostID     string              `json:"post_id"`
}

// HandleList returns a page of the feed.
//
// HTTP: GET /api/posts?user_id=&limit=20&offset=0
//
// RESPONSE FORMAT:
//
//	{"posts": [{"id":..,"caption":..,"media_urls":[..],"likes_count":..,"author":{..}}, ...]}
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), service.DefaultListLimit, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"), 0, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.posts.List(r.Context(), q.Get("user_id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandlePost dispatches on "action", defaulting to create:
//
//	POST /api/posts {"action":"create","caption":..,"media_type":..,"media_files":[{"data":..,"type":..}],"location":..}
//	POST /api/posts {"action":"like","post_id":..}
//
// Mounted behind auth.RequireAuth.
func (h *PostHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch req.Action {
	case "", "create":
		h.create(w, r, req)
	case "like":
		h.toggleLike(w, r, req.PostID)
	default:
		writeError(w, apperror.ValidationFailed("action", "action must be create or like"))
	}
}

// HandleToggleLike is the REST form of the like action.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, chi.URLParam(r, "id"))
}

func (h *PostHandler) create(w http.ResponseWriter, r *http.Request, req postRequest) {
	res, err := h.posts.Create(r.Context(), auth.IdentityFromContext(r.Context()), service.CreatePostInput{
		Caption:    req.Caption,
		MediaType:  req.MediaType,
		MediaFiles: req.MediaFiles,
		Location:   req.Location,
		IsPublic:   req.IsPublic,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *PostHandler) toggleLike(w http.ResponseWriter, r *http.Request, postID string) {
	res, err := h.posts.ToggleLike(r.Context(), auth.IdentityFromContext(r.Context()), postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func intParam(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
