package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vitos/ladder_bot/internal/domain"
)

// RedisConfig holds connection parameters for the Redis state store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RedisStateStore keeps position state as JSON under ladder:state:<symbol>.
type RedisStateStore struct {
	rdb *redis.Client
}

func NewRedisStateStore(ctx context.Context, cfg RedisConfig) (*RedisStateStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisStateStore{rdb: rdb}, nil
}

func stateKey(symbol string) string { return "ladder:state:" + symbol }

func (s *RedisStateStore) SaveState(ctx context.Context, st domain.PositionState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: marshal state %s: %w", st.Symbol, err)
	}
	if err := s.rdb.Set(ctx, stateKey(st.Symbol), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save state %s: %w", st.Symbol, err)
	}
	return nil
}

// LoadState returns domain.ErrNotFound when no state was ever saved.
func (s *RedisStateStore) LoadState(ctx context.Context, symbol string) (*domain.PositionState, error) {
	data, err := s.rdb.Get(ctx, stateKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: load state %s: %w", symbol, err)
	}

	var st domain.PositionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("redis: unmarshal state %s: %w", symbol, err)
	}
	return &st, nil
}

func (s *RedisStateStore) Close() error {
	return s.rdb.Close()
}
