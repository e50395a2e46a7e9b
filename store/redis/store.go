// Package redis implements store.StateStore on Redis
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/Cogwheel-Validator/spectra-lease/store"
)

const defaultPrefix = "spectra:lease:"

// NeverExpires is the index score of states saved without ttl, 2100-01-01 UTC
const NeverExpires = 4102444800

// Store keeps every state under prefix+id and indexes the ids in a set
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL expires states that were not saved for ttl
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to the redis server at address
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store on an existing client
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + "state:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Save(ctx context.Context, id string, state []byte) error {
	// Score = expiry
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = NeverExpires
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(id), state, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save state %s to redis: %w", id, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	state, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get state %s from redis: %w", id, err)
	}
	return state, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete state %s from redis: %w", id, err)
	}
	return nil
}

// List prunes expired ids from the index and returns the rest
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired states: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
