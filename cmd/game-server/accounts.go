package main

import (
	"context"
	"fmt"

	"chess-arena/internal/config"
	"chess-arena/internal/store"
	"chess-arena/internal/store/redisstore"
	httptransport "chess-arena/internal/transport/http"
)

// accountBackend is the configured account store plus the optional
// capabilities the HTTP surface uses.
type accountBackend struct {
	name        string
	accounts    store.AccountStore
	health      httptransport.Pinger
	leaderboard httptransport.Leaderboard
	close       func()
}

func openAccountStore(ctx context.Context, cfg config.ServerConfig) (accountBackend, error) {
	switch cfg.AccountStore {
	case config.AccountStorePostgres:
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return accountBackend{}, fmt.Errorf("postgres store: %w", err)
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return accountBackend{}, fmt.Errorf("postgres ping: %w", err)
		}
		return accountBackend{
			name:        cfg.AccountStore,
			accounts:    st,
			health:      st,
			leaderboard: st,
			close:       st.Close,
		}, nil
	case config.AccountStoreRedis:
		rcfg := redisstore.DefaultConfig()
		rcfg.URL = cfg.RedisURL
		st, err := redisstore.New(rcfg)
		if err != nil {
			return accountBackend{}, fmt.Errorf("redis store: %w", err)
		}
		return accountBackend{
			name:     cfg.AccountStore,
			accounts: st,
			health:   st,
			close:    func() { _ = st.Close() },
		}, nil
	case config.AccountStoreNone:
		return accountBackend{name: cfg.AccountStore, accounts: store.Nop{}, close: func() {}}, nil
	default:
		return accountBackend{}, fmt.Errorf("unknown account store %q", cfg.AccountStore)
	}
}
