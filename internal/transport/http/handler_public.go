package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type PublicHandlers struct {
	rooms       RoomSource
	leaderboard Leaderboard
}

func NewPublicHandlers(rooms RoomSource, leaderboard Leaderboard) *PublicHandlers {
	return &PublicHandlers{rooms: rooms, leaderboard: leaderboard}
}

func (h *PublicHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		items := h.rooms.Rooms()
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	}
}

func (h *PublicHandlers) Room() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := h.rooms.Room(chi.URLParam(r, "room_id"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func (h *PublicHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.leaderboard == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "leaderboard_unavailable")
			return
		}
		limit := ParseLimit(r, 20, 100)
		items, err := h.leaderboard.Leaderboard(r.Context(), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit})
	}
}
