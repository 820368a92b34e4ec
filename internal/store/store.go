package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// AccountStore is the persistence surface the relay settles scores through.
type AccountStore interface {
	FindByAccountID(ctx context.Context, id string) (Account, error)
	IncrementWin(ctx context.Context, id string) error
	IncrementLoss(ctx context.Context, id string) error
	IncrementDraw(ctx context.Context, id string) error
}

// Store wraps DB access.
type Store struct {
	Pool *pgxpool.Pool
}

var _ AccountStore = (*Store)(nil)

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}
