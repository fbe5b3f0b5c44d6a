package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/karma-feed/internal/auth"
	"github.com/sakif/karma-feed/internal/service"
)

// PostHandler serves the feed, threads and the like toggle.
type PostHandler struct {
	posts  *service.PostService
	likes  *service.LikeService
	responder
}

func NewPostHandler(posts *service.PostService, likes *service.LikeService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, likes: likes, responder: responder{logger: logger}}
}

// createPostRequest is the body of POST /api/posts. A missing or null
// parentId creates a thread.
type createPostRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

// HandleFeed returns top-level posts, newest first.
//
// HTTP: GET /api/posts?limit=20&offset=0
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	viewerID, _ := auth.UserIDFromContext(r.Context())
	posts, err := h.posts.Feed(r.Context(), viewerID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, posts)
}

// HandleCreate creates a thread or a reply for the authenticated user.
//
// HTTP: POST /api/posts
// BODY: {"content": "...", "parentId": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	actorID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.Create(r.Context(), actorID, req.Content, req.ParentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

// HandleGet returns a post and, unless expand=false, its reply tree.
//
// HTTP: GET /api/posts/{id}?expand=true
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	expand, err := queryBool(r, "expand", true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	viewerID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.GetThread(r.Context(), chi.URLParam(r, "id"), viewerID, expand)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// HandleDelete deletes one of the caller's own posts.
//
// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())
	if err := h.posts.Delete(r.Context(), actorID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleLike likes the post, or unlikes it if already liked.
//
// HTTP: POST /api/posts/{id}/like
// RESPONSE: {"status": "liked", "likesCount": 3, "isLikedByUser": true}
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())
	result, err := h.likes.Toggle(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
