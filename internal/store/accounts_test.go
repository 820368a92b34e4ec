package store_test

import (
	"context"
	"errors"
	"testing"

	"chess-arena/internal/store"
	"chess-arena/internal/testutil"
)

func TestAccountCountersIncrement(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	if err := st.EnsureAccount(ctx, store.Account{ID: "acc-1", Username: "alice"}); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if err := st.IncrementWin(ctx, "acc-1"); err != nil {
		t.Fatalf("increment win: %v", err)
	}
	if err := st.IncrementWin(ctx, "acc-1"); err != nil {
		t.Fatalf("increment win: %v", err)
	}
	if err := st.IncrementLoss(ctx, "acc-1"); err != nil {
		t.Fatalf("increment loss: %v", err)
	}
	if err := st.IncrementDraw(ctx, "acc-1"); err != nil {
		t.Fatalf("increment draw: %v", err)
	}

	got, err := st.FindByAccountID(ctx, "acc-1")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if got.Wins != 2 || got.Losses != 1 || got.Draws != 1 {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if got.DisplayName() != "alice" {
		t.Fatalf("DisplayName() = %q, want alice", got.DisplayName())
	}
}

func TestAccountMissingIsNotFound(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	if _, err := st.FindByAccountID(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.IncrementWin(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on increment, got %v", err)
	}
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	a := store.Account{ID: "acc-2", Username: "bob", Email: "bob@example.com"}
	if err := st.EnsureAccount(ctx, a); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if err := st.IncrementLoss(ctx, a.ID); err != nil {
		t.Fatalf("increment loss: %v", err)
	}
	if err := st.EnsureAccount(ctx, a); err != nil {
		t.Fatalf("ensure account again: %v", err)
	}
	got, err := st.FindByAccountID(ctx, a.ID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if got.Losses != 1 {
		t.Fatalf("expected losses preserved, got %+v", got)
	}
}

func TestLeaderboardOrdersByWins(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	for _, a := range []store.Account{{ID: "a", Username: "ann"}, {ID: "b", Username: "ben"}} {
		if err := st.EnsureAccount(ctx, a); err != nil {
			t.Fatalf("ensure account %s: %v", a.ID, err)
		}
	}
	if err := st.IncrementWin(ctx, "b"); err != nil {
		t.Fatalf("increment win: %v", err)
	}

	rows, err := st.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "b" {
		t.Fatalf("unexpected leaderboard: %+v", rows)
	}
}
