package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/karma-feed/internal/service"
)

type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
	responder
}

func NewLeaderboardHandler(leaderboard *service.LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard, responder: responder{logger: logger}}
}

// HandleByPoints ranks users by all-time points.
//
// HTTP: GET /api/leaderboard/points?limit=10
func (h *LeaderboardHandler) HandleByPoints(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	users, err := h.leaderboard.ByTotalPoints(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

// HandleRecent ranks users by karma from likes inside the window.
//
// HTTP: GET /api/leaderboard/recent?hours=24&limit=5
// RESPONSE: [{"id": "...", "username": "...", "points": 40, "recentKarma": 11}, ...]
func (h *LeaderboardHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.leaderboard.ByRecentKarma(r.Context(), hours, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}
