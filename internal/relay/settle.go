package relay

import (
	"context"
	"errors"

	"chess-arena/internal/store"

	"github.com/rs/zerolog/log"
)

type outcome struct {
	reason string
	// departing is the forfeiting identity; empty when both seats end together.
	departing string
	notice    string
	result    Result
	resolved  bool
}

type settlement struct {
	id     string
	roomID string
	reason string
	result Result
	white  Seat
	black  Seat
}

func (s settlement) winnerID() string {
	switch s.result {
	case ResultWhiteWins:
		return s.white.IdentityID
	case ResultBlackWins:
		return s.black.IdentityID
	default:
		return ""
	}
}

// endRoomLocked tears the room down: unseat the departing player, notify the
// room, release every occupant and delete the room. The returned settlement
// is applied by the caller once mu is released.
func (h *Hub) endRoomLocked(roomID string, o outcome) (settlement, bool) {
	if !h.rooms.Exists(roomID) {
		return settlement{}, false
	}
	seats := h.rooms.Occupants(roomID)
	st := settlement{id: store.NewPrefixedID("stl"), roomID: roomID, reason: o.reason, result: o.result}
	for _, seat := range seats {
		switch seat.Color {
		case ColorWhite:
			st.white = seat
		case ColorBlack:
			st.black = seat
		}
	}
	if !o.resolved {
		st.result = ResultWhiteWins
		if o.departing == st.white.IdentityID {
			st.result = ResultBlackWins
		}
	}

	if o.departing != "" {
		h.rooms.Unseat(roomID, o.departing)
		h.sessions.ClearRoom(o.departing)
		h.registry.Broadcast(roomID, EventPlayerDisconnect, o.notice, nil)
	}

	ended := GameEnded{RoomID: roomID, Result: st.result, Reason: o.reason, WinnerID: st.winnerID()}
	for _, seat := range seats {
		h.grace.Cancel(seat.IdentityID, RoomGraceTimer)
		h.sessions.ClearRoom(seat.IdentityID)
		// Occupants that reconnected without confirming are outside the group.
		if c, ok := h.registry.Lookup(seat.IdentityID); ok && !h.registry.InGroup(roomID, c) {
			c.Send(EventGameEnded, ended)
		}
	}
	h.registry.Broadcast(roomID, EventGameEnded, ended, nil)
	h.registry.DropGroup(roomID)
	h.rooms.Delete(roomID)
	h.syncGaugesLocked()

	log.Info().
		Str("settlement_id", st.id).
		Str("room_id", roomID).
		Str("reason", o.reason).
		Str("result", st.result.String()).
		Str("winner_id", ended.WinnerID).
		Msg("room closed")
	return st, true
}

// settle applies the score update. Failures are logged, never retried.
func (h *Hub) settle(ctx context.Context, st settlement) {
	logger := log.With().
		Str("settlement_id", st.id).
		Str("room_id", st.roomID).
		Str("reason", st.reason).
		Logger()

	if st.white.IdentityID == "" || st.black.IdentityID == "" {
		h.metrics.settlements.WithLabelValues(st.reason, "incomplete").Inc()
		return
	}
	if st.white.IsGuest || st.black.IsGuest {
		h.metrics.settlements.WithLabelValues(st.reason, "guest_skipped").Inc()
		logger.Debug().Msg("settlement skipped for guest game")
		return
	}

	var errs []error
	switch st.result {
	case ResultDraw:
		errs = append(errs,
			h.accounts.IncrementDraw(ctx, st.white.IdentityID),
			h.accounts.IncrementDraw(ctx, st.black.IdentityID))
	case ResultWhiteWins:
		errs = append(errs,
			h.accounts.IncrementWin(ctx, st.white.IdentityID),
			h.accounts.IncrementLoss(ctx, st.black.IdentityID))
	case ResultBlackWins:
		errs = append(errs,
			h.accounts.IncrementWin(ctx, st.black.IdentityID),
			h.accounts.IncrementLoss(ctx, st.white.IdentityID))
	}
	if err := errors.Join(errs...); err != nil {
		h.metrics.settlements.WithLabelValues(st.reason, "failed").Inc()
		logger.Error().Err(err).Msg("settlement failed")
		return
	}
	h.metrics.settlements.WithLabelValues(st.reason, "settled").Inc()
	logger.Info().Str("result", st.result.String()).Msg("game settled")
}
