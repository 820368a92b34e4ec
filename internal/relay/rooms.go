package relay

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"chess-arena/internal/auth"
)

const (
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

	ColorWhite = "white"
	ColorBlack = "black"

	MaxSeats        = 2
	MaxRoomIDLength = 64
	MaxChatLength   = 500
)

type room struct {
	id        string
	fen       string
	moves     []MoveEntry
	chat      []ChatEntry
	seats     []Seat
	createdAt time.Time
}

func (r *room) seatOf(identityID string) (Seat, bool) {
	for _, s := range r.seats {
		if s.IdentityID == identityID {
			return s, true
		}
	}
	return Seat{}, false
}

func (r *room) snapshot() RoomState {
	moves := make([]MoveEntry, len(r.moves))
	for i, m := range r.moves {
		m.Move = slices.Clone(m.Move)
		moves[i] = m
	}
	return RoomState{
		RoomID:    r.id,
		FEN:       r.fen,
		Moves:     moves,
		Messages:  slices.Clone(r.chat),
		Players:   slices.Clone(r.seats),
		CreatedAt: r.createdAt,
	}
}

// RoomStore holds every live room. Capacity and color assignment are enforced
// here and nowhere else. Not safe for concurrent use.
type RoomStore struct {
	rooms map[string]*room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: map[string]*room{}}
}

func validateRoomID(id string) error {
	if strings.TrimSpace(id) == "" || utf8.RuneCountInString(id) > MaxRoomIDLength {
		return ErrInvalidRoomID
	}
	return nil
}

func (s *RoomStore) Create(id string, now time.Time) error {
	if err := validateRoomID(id); err != nil {
		return err
	}
	if _, ok := s.rooms[id]; ok {
		return ErrRoomConflict
	}
	s.rooms[id] = &room{id: id, fen: StartingFEN, createdAt: now}
	return nil
}

func (s *RoomStore) Exists(id string) bool {
	_, ok := s.rooms[id]
	return ok
}

func (s *RoomStore) Get(id string) (RoomState, bool) {
	r, ok := s.rooms[id]
	if !ok {
		return RoomState{}, false
	}
	return r.snapshot(), true
}

// Seat places identity in the room. The first seat is white, the second black.
// Seating an identity that already holds a seat returns that seat unchanged.
func (s *RoomStore) Seat(id string, identity auth.Identity) (Seat, error) {
	r, ok := s.rooms[id]
	if !ok {
		return Seat{}, ErrRoomNotFound
	}
	if seat, ok := r.seatOf(identity.ID); ok {
		return seat, nil
	}
	if len(r.seats) >= MaxSeats {
		return Seat{}, ErrRoomFull
	}
	color := ColorWhite
	for _, taken := range r.seats {
		if taken.Color == ColorWhite {
			color = ColorBlack
		}
	}
	seat := Seat{
		IdentityID:  identity.ID,
		DisplayName: identity.DisplayName,
		Color:       color,
		IsGuest:     identity.IsGuest,
	}
	r.seats = append(r.seats, seat)
	return seat, nil
}

func (s *RoomStore) SeatOf(id, identityID string) (Seat, bool) {
	r, ok := s.rooms[id]
	if !ok {
		return Seat{}, false
	}
	return r.seatOf(identityID)
}

func (s *RoomStore) Unseat(id, identityID string) bool {
	r, ok := s.rooms[id]
	if !ok {
		return false
	}
	before := len(r.seats)
	r.seats = slices.DeleteFunc(r.seats, func(seat Seat) bool { return seat.IdentityID == identityID })
	return len(r.seats) != before
}

// AppendMove records the move and trusts the caller-supplied position.
func (s *RoomStore) AppendMove(id string, m MoveEntry) bool {
	r, ok := s.rooms[id]
	if !ok {
		return false
	}
	r.moves = append(r.moves, m)
	if m.FEN != "" {
		r.fen = m.FEN
	}
	return true
}

func (s *RoomStore) AppendChat(id string, e ChatEntry) ([]ChatEntry, bool) {
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	e.Text = truncateRunes(e.Text, MaxChatLength)
	r.chat = append(r.chat, e)
	return slices.Clone(r.chat), true
}

func (s *RoomStore) Occupants(id string) []Seat {
	r, ok := s.rooms[id]
	if !ok {
		return nil
	}
	return slices.Clone(r.seats)
}

func (s *RoomStore) Delete(id string) {
	delete(s.rooms, id)
}

func (s *RoomStore) Summaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, RoomSummary{
			RoomID:    r.id,
			Players:   slices.Clone(r.seats),
			MoveCount: len(r.moves),
			Full:      len(r.seats) >= MaxSeats,
			CreatedAt: r.createdAt,
		})
	}
	slices.SortFunc(out, func(a, b RoomSummary) int { return strings.Compare(a.RoomID, b.RoomID) })
	return out
}

func (s *RoomStore) Len() int { return len(s.rooms) }

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
