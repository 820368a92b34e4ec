package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"chess-arena/internal/store"

	"github.com/redis/go-redis/v9"
)

// Storage keeps one hash per account: username, email, wins, losses, draws,
// created_at and updated_at (unix millis).
type Storage struct {
	client *redis.Client
}

var _ store.AccountStore = (*Storage)(nil)

// incrementScript bumps a counter only when the account hash already exists.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

// New creates a Redis-backed account store and verifies the connection
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Storage{client: client}, nil
}

// NewWithClient wraps an existing client (for testing)
func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) FindByAccountID(ctx context.Context, id string) (store.Account, error) {
	fields, err := s.client.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return store.Account{}, err
	}
	if len(fields) == 0 {
		return store.Account{}, store.ErrNotFound
	}
	return store.Account{
		ID:        id,
		Username:  fields["username"],
		Email:     fields["email"],
		Wins:      parseCount(fields["wins"]),
		Losses:    parseCount(fields["losses"]),
		Draws:     parseCount(fields["draws"]),
		CreatedAt: parseMillis(fields["created_at"]),
		UpdatedAt: parseMillis(fields["updated_at"]),
	}, nil
}

func (s *Storage) IncrementWin(ctx context.Context, id string) error {
	return s.increment(ctx, id, "wins")
}

func (s *Storage) IncrementLoss(ctx context.Context, id string) error {
	return s.increment(ctx, id, "losses")
}

func (s *Storage) IncrementDraw(ctx context.Context, id string) error {
	return s.increment(ctx, id, "draws")
}

func (s *Storage) increment(ctx context.Context, id, field string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n, err := incrementScript.Run(ctx, s.client, []string{accountKey(id)}, field, now).Int64()
	if err != nil {
		return err
	}
	if n < 0 {
		return store.ErrNotFound
	}
	return nil
}

// EnsureAccount creates the hash if missing; existing counters are kept.
func (s *Storage) EnsureAccount(ctx context.Context, a store.Account) error {
	if a.ID == "" {
		return errors.New("account id is required")
	}
	key := accountKey(a.ID)
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "username", a.Username)
		pipe.HSetNX(ctx, key, "email", a.Email)
		pipe.HSetNX(ctx, key, "wins", 0)
		pipe.HSetNX(ctx, key, "losses", 0)
		pipe.HSetNX(ctx, key, "draws", 0)
		pipe.HSetNX(ctx, key, "created_at", now)
		pipe.HSetNX(ctx, key, "updated_at", now)
		return nil
	})
	return err
}

func accountKey(id string) string {
	return "account:" + id
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
