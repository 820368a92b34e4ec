package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, username, email, wins, losses, draws, created_at, updated_at`

func (s *Store) FindByAccountID(ctx context.Context, id string) (Account, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return Account{}, mapNotFound(err)
	}
	return a, nil
}

func (s *Store) IncrementWin(ctx context.Context, id string) error {
	return s.increment(ctx, "wins", id)
}

func (s *Store) IncrementLoss(ctx context.Context, id string) error {
	return s.increment(ctx, "losses", id)
}

func (s *Store) IncrementDraw(ctx context.Context, id string) error {
	return s.increment(ctx, "draws", id)
}

// increment bumps one counter column; column is never caller-controlled.
func (s *Store) increment(ctx context.Context, column, id string) error {
	tag, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE accounts SET %s = %s + 1, updated_at = now() WHERE id = $1`, column, column), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) EnsureAccount(ctx context.Context, a Account) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO accounts (id, username, email) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Username, a.Email)
	return err
}

// Leaderboard orders accounts by wins, then fewest losses.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY wins DESC, losses ASC, username ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.Wins, &a.Losses, &a.Draws, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
