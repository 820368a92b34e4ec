package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chess-arena/internal/auth"
	"chess-arena/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRoomGrace    = 30 * time.Second
	DefaultRemovalGrace = 30*time.Second + 100*time.Millisecond

	timerSettleTimeout = 5 * time.Second
)

const (
	reasonResign    = "resign"
	reasonGameOver  = "game_over"
	reasonAbandoned = "abandoned"
)

type Options struct {
	RoomGrace         time.Duration
	RemovalGrace      time.Duration
	SettleAbandonment bool
	// Registerer receives the hub metrics. Nil registers into a private registry.
	Registerer prometheus.Registerer
	AfterFunc  AfterFunc
	Now        func() time.Time
}

// Hub is the single logical event stream. Every handler and timer callback
// runs under mu; account-store settlement runs after mu is released.
type Hub struct {
	mu       sync.Mutex
	sessions *SessionTable
	rooms    *RoomStore
	registry *Registry
	grace    *GraceScheduler
	closed   bool

	accounts          store.AccountStore
	settleAbandonment bool
	now               func() time.Time
	metrics           *metrics
}

func NewHub(accounts store.AccountStore, opts Options) *Hub {
	if opts.RoomGrace <= 0 {
		opts.RoomGrace = DefaultRoomGrace
	}
	if opts.RemovalGrace <= opts.RoomGrace {
		opts.RemovalGrace = opts.RoomGrace + 100*time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if accounts == nil {
		accounts = store.Nop{}
	}
	return &Hub{
		sessions:          NewSessionTable(),
		rooms:             NewRoomStore(),
		registry:          NewRegistry(),
		grace:             NewGraceScheduler(opts.AfterFunc, opts.RoomGrace, opts.RemovalGrace),
		accounts:          accounts,
		settleAbandonment: opts.SettleAbandonment,
		now:               opts.Now,
		metrics:           newMetrics(opts.Registerer),
	}
}

// Connect registers c as the identity's live connection and resolves any
// pending removal. A session that still names a room is told so, but stays
// inactive until the client confirms with room-join or is-reconnecting.
func (h *Hub) Connect(ac auth.AuthenticatedConnection, c Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	id := ac.Identity.ID

	h.grace.Cancel(id, RemovalTimer)
	before, known := h.sessions.Get(id)
	prev := h.registry.Register(id, c)
	sess, created := h.sessions.Upsert(ac.Identity)
	if prev != nil && known && before.Connectivity == Connected {
		h.supersedeLocked(sess, prev)
	}
	h.sessions.MarkConnected(id)
	h.syncGaugesLocked()

	log.Info().
		Str("identity_id", id).
		Str("conn_id", ac.ConnID).
		Bool("guest", ac.Identity.IsGuest).
		Bool("first_contact", created).
		Msg("connection registered")

	if sess, _ = h.sessions.Get(id); !created && sess.RoomID != "" {
		c.Send(EventSessionRestored, SessionRestored{RoomID: sess.RoomID})
	}
	return nil
}

func (h *Hub) supersedeLocked(sess Session, prev Conn) {
	h.registry.LeaveAllGroups(prev)
	prev.Send(EventError, errorPayload(ErrSuperseded))
	prev.Close()
	h.metrics.superseded.Inc()
	log.Warn().
		Str("identity_id", sess.Identity.ID).
		Str("conn_id", prev.ID()).
		Msg("connection superseded")
	if sess.RoomID != "" && sess.ActiveInRoom {
		h.markAwayLocked(sess)
	}
}

// Disconnect handles the transport closing c. A handle that is no longer the
// registered one is ignored.
func (h *Hub) Disconnect(ac auth.AuthenticatedConnection, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registry.LeaveAllGroups(c)
	if cur, ok := h.registry.Lookup(ac.Identity.ID); !ok || cur != c {
		return
	}
	h.disconnectLocked(ac.Identity.ID)
}

func (h *Hub) disconnectLocked(id string) {
	sess, ok := h.sessions.Get(id)
	if !ok {
		h.registry.Remove(id, nil)
		h.syncGaugesLocked()
		return
	}
	h.sessions.MarkDisconnected(id)
	if sess.RoomID != "" {
		if sess.ActiveInRoom {
			h.markAwayLocked(sess)
		} else if !h.grace.Pending(id, RoomGraceTimer) {
			h.armRoomGraceLocked(id)
		}
	}
	h.grace.Arm(id, RemovalTimer, func(gen uint64) { h.onRemovalExpired(id, gen) })
	log.Info().
		Str("identity_id", id).
		Str("room_id", sess.RoomID).
		Dur("removal_in", h.grace.Duration(RemovalTimer)).
		Msg("connection lost")
}

func (h *Hub) markAwayLocked(sess Session) {
	id := sess.Identity.ID
	h.registry.Broadcast(sess.RoomID, EventPlayerReconnecting,
		fmt.Sprintf("%s is reconnecting...", sess.Identity.DisplayName), nil)
	h.sessions.SetActive(id, false)
	h.armRoomGraceLocked(id)
}

func (h *Hub) armRoomGraceLocked(id string) {
	h.grace.Arm(id, RoomGraceTimer, func(gen uint64) { h.onRoomGraceExpired(id, gen) })
}

func (h *Hub) onRoomGraceExpired(id string, gen uint64) {
	h.mu.Lock()
	if !h.grace.Claim(id, RoomGraceTimer, gen) {
		h.mu.Unlock()
		return
	}
	var st *settlement
	if sess, ok := h.sessions.Get(id); ok && sess.RoomID != "" && !sess.ActiveInRoom {
		h.metrics.graceExpired.WithLabelValues(RoomGraceTimer.String()).Inc()
		log.Info().Str("identity_id", id).Str("room_id", sess.RoomID).Msg("room grace expired, abandoning")
		st = h.abandonLocked(sess)
	}
	h.mu.Unlock()
	h.settleTimerDriven(st)
}

func (h *Hub) onRemovalExpired(id string, gen uint64) {
	h.mu.Lock()
	if !h.grace.Claim(id, RemovalTimer, gen) {
		h.mu.Unlock()
		return
	}
	sess, ok := h.sessions.Get(id)
	if !ok || sess.Connectivity != Disconnected {
		h.mu.Unlock()
		return
	}
	var st *settlement
	if sess.RoomID != "" {
		st = h.abandonLocked(sess)
	}
	h.grace.Cancel(id, RoomGraceTimer)
	h.sessions.Delete(id)
	h.registry.Remove(id, nil)
	h.metrics.graceExpired.WithLabelValues(RemovalTimer.String()).Inc()
	h.syncGaugesLocked()
	h.mu.Unlock()

	log.Info().Str("identity_id", id).Msg("session removed")
	h.settleTimerDriven(st)
}

func (h *Hub) abandonLocked(sess Session) *settlement {
	st, ok := h.endRoomLocked(sess.RoomID, outcome{
		reason:    reasonAbandoned,
		departing: sess.Identity.ID,
		notice:    fmt.Sprintf("%s has left the game", sess.Identity.DisplayName),
	})
	if !ok {
		h.sessions.ClearRoom(sess.Identity.ID)
		return nil
	}
	return &st
}

func (h *Hub) settleTimerDriven(st *settlement) {
	if st == nil {
		return
	}
	if !h.settleAbandonment {
		h.metrics.settlements.WithLabelValues(st.reason, "unscored").Inc()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timerSettleTimeout)
	defer cancel()
	h.settle(ctx, *st)
}

// begin checks that c is still the identity's registered connection.
func (h *Hub) beginLocked(ac auth.AuthenticatedConnection, c Conn) (Session, error) {
	if h.closed {
		return Session{}, ErrClosed
	}
	if cur, ok := h.registry.Lookup(ac.Identity.ID); !ok || cur != c {
		return Session{}, ErrSuperseded
	}
	sess, ok := h.sessions.Get(ac.Identity.ID)
	if !ok {
		return Session{}, fmt.Errorf("no session for %s: %w", ac.Identity.ID, ErrInternal)
	}
	return sess, nil
}

func (h *Hub) CreateRoom(ac auth.AuthenticatedConnection, c Conn, roomID string) error {
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, err := h.beginLocked(ac, c)
	if err != nil {
		return err
	}
	if sess.RoomID != "" {
		return alreadyInRoom(ErrRoomConflict, sess.RoomID)
	}
	if err := h.rooms.Create(roomID, h.now()); err != nil {
		return err
	}
	if _, err := h.rooms.Seat(roomID, ac.Identity); err != nil {
		h.rooms.Delete(roomID)
		return err
	}
	h.sessions.SetRoom(ac.Identity.ID, roomID, true)
	h.registry.JoinGroup(roomID, c)
	h.syncGaugesLocked()

	log.Info().Str("identity_id", ac.Identity.ID).Str("room_id", roomID).Msg("room created")
	c.Send(EventRoomCreated, roomID)
	return nil
}

func (h *Hub) JoinRoom(ac auth.AuthenticatedConnection, c Conn, roomID string) error {
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, err := h.beginLocked(ac, c)
	if err != nil {
		return err
	}
	if !h.rooms.Exists(roomID) {
		return ErrRoomNotFound
	}
	if sess.RoomID == roomID {
		return h.rejoinLocked(sess, c)
	}
	if sess.RoomID != "" {
		return alreadyInRoom(ErrAlreadyInRoom, sess.RoomID)
	}
	seat, err := h.rooms.Seat(roomID, ac.Identity)
	if err != nil {
		return err
	}
	h.sessions.SetRoom(ac.Identity.ID, roomID, true)
	h.registry.JoinGroup(roomID, c)

	state, _ := h.rooms.Get(roomID)
	log.Info().
		Str("identity_id", ac.Identity.ID).
		Str("room_id", roomID).
		Str("color", seat.Color).
		Msg("player seated")
	h.registry.Broadcast(roomID, EventRoomJoined, RoomJoined{
		Message:   fmt.Sprintf("%s joined the room", ac.Identity.DisplayName),
		RoomState: state,
	}, nil)
	return nil
}

// ConfirmReconnect handles is-reconnecting: only the rejoin path applies.
func (h *Hub) ConfirmReconnect(ac auth.AuthenticatedConnection, c Conn, roomID string) error {
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, err := h.beginLocked(ac, c)
	if err != nil {
		return err
	}
	if sess.RoomID != roomID || !h.rooms.Exists(roomID) {
		return ErrNotInRoom
	}
	return h.rejoinLocked(sess, c)
}

func (h *Hub) rejoinLocked(sess Session, c Conn) error {
	id := sess.Identity.ID
	h.grace.Cancel(id, RoomGraceTimer)
	h.sessions.SetActive(id, true)
	h.registry.JoinGroup(sess.RoomID, c)
	if !sess.ActiveInRoom {
		h.metrics.reconnects.Inc()
	}

	state, _ := h.rooms.Get(sess.RoomID)
	log.Info().Str("identity_id", id).Str("room_id", sess.RoomID).Msg("player rejoined")
	h.registry.Broadcast(sess.RoomID, EventRoomJoined, RoomJoined{
		Message:   fmt.Sprintf("%s reconnected", sess.Identity.DisplayName),
		RoomState: state,
	}, nil)
	return nil
}

// MakeMove relays a move to the other occupants. A move for a room that no
// longer exists is dropped.
func (h *Hub) MakeMove(ac auth.AuthenticatedConnection, c Conn, p MovePayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.beginLocked(ac, c); err != nil {
		return err
	}
	if !h.rooms.Exists(p.RoomID) {
		log.Debug().Str("identity_id", ac.Identity.ID).Str("room_id", p.RoomID).Msg("move for missing room dropped")
		return nil
	}
	if _, ok := h.rooms.SeatOf(p.RoomID, ac.Identity.ID); !ok {
		return ErrNotInRoom
	}
	h.rooms.AppendMove(p.RoomID, MoveEntry{
		Move:         p.Move,
		FEN:          p.FEN,
		ByIdentityID: ac.Identity.ID,
		At:           h.now(),
	})
	h.registry.Broadcast(p.RoomID, EventPlayerMove, PlayerMove{
		Move:          p.Move,
		ByDisplayName: ac.Identity.DisplayName,
	}, c)
	return nil
}

// Message appends to the chat log and sends the whole log to the room.
func (h *Hub) Message(ac auth.AuthenticatedConnection, c Conn, p ChatPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.beginLocked(ac, c); err != nil {
		return err
	}
	if !h.rooms.Exists(p.RoomID) {
		return nil
	}
	seat, ok := h.rooms.SeatOf(p.RoomID, ac.Identity.ID)
	if !ok {
		return ErrNotInRoom
	}
	color := p.Message.AuthorColor
	if color == "" {
		color = seat.Color
	}
	chat, _ := h.rooms.AppendChat(p.RoomID, ChatEntry{
		AuthorColor: color,
		AuthorID:    ac.Identity.ID,
		AuthorName:  ac.Identity.DisplayName,
		Text:        p.Message.Text,
		At:          h.now(),
	})
	h.registry.Broadcast(p.RoomID, EventMessage, ChatLog{RoomID: p.RoomID, Messages: chat}, nil)
	return nil
}

// Resign forfeits the caller's current game. The opponent, if seated, wins.
func (h *Hub) Resign(ctx context.Context, ac auth.AuthenticatedConnection, c Conn) error {
	st, ok, err := h.endLocked(func() (settlement, bool, error) {
		sess, err := h.beginLocked(ac, c)
		if err != nil {
			return settlement{}, false, err
		}
		if sess.RoomID == "" || !sess.ActiveInRoom {
			return settlement{}, false, ErrNotInRoom
		}
		st, ok := h.endRoomLocked(sess.RoomID, outcome{
			reason:    reasonResign,
			departing: ac.Identity.ID,
			notice:    fmt.Sprintf("%s resigned", ac.Identity.DisplayName),
		})
		return st, ok, nil
	})
	if ok {
		h.settle(ctx, st)
	}
	return err
}

// GameOver ends the room with a client-reported result. Reports for a room
// that is already gone are dropped.
func (h *Hub) GameOver(ctx context.Context, ac auth.AuthenticatedConnection, c Conn, p GameOverPayload) error {
	if !p.Result.valid() {
		return ErrInvalidPayload
	}
	st, ok, err := h.endLocked(func() (settlement, bool, error) {
		if _, err := h.beginLocked(ac, c); err != nil {
			return settlement{}, false, err
		}
		if !h.rooms.Exists(p.RoomID) {
			return settlement{}, false, nil
		}
		if _, ok := h.rooms.SeatOf(p.RoomID, ac.Identity.ID); !ok {
			return settlement{}, false, ErrNotInRoom
		}
		st, ok := h.endRoomLocked(p.RoomID, outcome{
			reason:   reasonGameOver,
			result:   p.Result,
			resolved: true,
		})
		return st, ok, nil
	})
	if ok {
		h.settle(ctx, st)
	}
	return err
}

func (h *Hub) endLocked(fn func() (settlement, bool, error)) (settlement, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn()
}

// ForceDisconnect closes the identity's registered connection and starts the
// normal disconnect protocol for it.
func (h *Hub) ForceDisconnect(identityID string) bool {
	h.mu.Lock()
	c, ok := h.registry.Lookup(identityID)
	if !ok {
		h.mu.Unlock()
		return false
	}
	h.registry.LeaveAllGroups(c)
	h.disconnectLocked(identityID)
	h.registry.Remove(identityID, c)
	h.syncGaugesLocked()
	h.mu.Unlock()

	c.Close()
	log.Info().Str("identity_id", identityID).Str("conn_id", c.ID()).Msg("connection force-closed")
	return true
}

func (h *Hub) Rooms() []RoomSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.Summaries()
}

func (h *Hub) Room(roomID string) (RoomState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.Get(roomID)
}

func (h *Hub) Session(identityID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions.Get(identityID)
}

// Close stops every timer and closes every registered connection. Events that
// arrive afterwards fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.grace.StopAll()
	conns := h.registry.All()
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	log.Info().Int("connections", len(conns)).Msg("hub closed")
}

func (h *Hub) syncGaugesLocked() {
	h.metrics.setGauges(h.registry.Len(), h.sessions.Len(), h.rooms.Len())
}
