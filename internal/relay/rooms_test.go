package relay

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRoomStoreSeatingRules(t *testing.T) {
	s := NewRoomStore()
	if err := s.Create("r1", time.Now()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create("r1", time.Now()); !errors.Is(err, ErrRoomConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	a, err := s.Seat("r1", account("a", "A"))
	if err != nil || a.Color != ColorWhite {
		t.Fatalf("first seat = %+v, %v", a, err)
	}
	again, err := s.Seat("r1", account("a", "A"))
	if err != nil || again != a {
		t.Fatalf("reseating should be a no-op, got %+v, %v", again, err)
	}
	b, err := s.Seat("r1", guest("b"))
	if err != nil || b.Color != ColorBlack || !b.IsGuest {
		t.Fatalf("second seat = %+v, %v", b, err)
	}
	if _, err := s.Seat("r1", account("c", "C")); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected full, got %v", err)
	}
	if _, err := s.Seat("missing", account("c", "C")); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if !s.Unseat("r1", "a") || s.Unseat("r1", "a") {
		t.Fatalf("unseat should succeed exactly once")
	}
	if got := s.Occupants("r1"); len(got) != 1 || got[0].Color != ColorBlack {
		t.Fatalf("remaining seat should keep its color, got %+v", got)
	}
}

func TestRoomSnapshotIsACopy(t *testing.T) {
	s := NewRoomStore()
	_ = s.Create("r1", time.Now())
	s.AppendMove("r1", MoveEntry{Move: json.RawMessage(`"e4"`), FEN: "f1"})
	s.AppendChat("r1", ChatEntry{Text: "hi"})

	snap, ok := s.Get("r1")
	if !ok {
		t.Fatalf("room missing")
	}
	snap.Moves[0].Move[1] = 'X'
	snap.Messages[0].Text = "changed"

	again, _ := s.Get("r1")
	if string(again.Moves[0].Move) != `"e4"` || again.Messages[0].Text != "hi" {
		t.Fatalf("snapshot aliases store state: %+v", again)
	}
	if again.FEN != "f1" {
		t.Fatalf("fen not updated, got %q", again.FEN)
	}
}

func TestRoomStoreMissingRoom(t *testing.T) {
	s := NewRoomStore()
	if s.AppendMove("gone", MoveEntry{}) {
		t.Fatalf("append to missing room should report false")
	}
	if _, ok := s.AppendChat("gone", ChatEntry{}); ok {
		t.Fatalf("chat to missing room should report false")
	}
	if s.Exists("gone") || s.Len() != 0 {
		t.Fatalf("missing room writes must not create rooms")
	}
}

func TestRoomSummariesSorted(t *testing.T) {
	s := NewRoomStore()
	for _, id := range []string{"c", "a", "b"} {
		_ = s.Create(id, time.Now())
	}
	_, _ = s.Seat("a", account("x", "X"))
	_, _ = s.Seat("a", account("y", "Y"))

	got := s.Summaries()
	if len(got) != 3 || got[0].RoomID != "a" || got[2].RoomID != "c" {
		t.Fatalf("unexpected order %+v", got)
	}
	if !got[0].Full || got[1].Full {
		t.Fatalf("unexpected full flags %+v", got)
	}
}

func TestValidateRoomID(t *testing.T) {
	long := make([]rune, MaxRoomIDLength)
	for i := range long {
		long[i] = '棋'
	}
	if err := validateRoomID(string(long)); err != nil {
		t.Fatalf("64 runes should be allowed: %v", err)
	}
	if err := validateRoomID(string(long) + "x"); !errors.Is(err, ErrInvalidRoomID) {
		t.Fatalf("65 runes should be rejected, got %v", err)
	}
}
