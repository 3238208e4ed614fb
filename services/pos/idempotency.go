package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	idempotencyKeyPrefix  = "pos:idempotency:sale:"
	idempotencyPending    = "pending"
)

// IdempotencyState é o estado de uma chave Idempotency-Key
type IdempotencyState int

const (
	IdempotencyNew IdempotencyState = iota
	IdempotencyInProgress
	IdempotencyCompleted
)

// IdempotencyStore guarda as chaves de idempotência das vendas junto com a
// impressão digital do pedido que as reservou.
// Reserve retorna IdempotencyNew quando a chave foi reservada para quem chamou;
// IdempotencyCompleted vem acompanhado do id da venda já gravada. Uma chave
// reservada por outro pedido retorna ErrIdempotencyKeyReused.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, fingerprint string) (IdempotencyState, string, error)
	Complete(ctx context.Context, key, fingerprint, saleID string) error
	Release(ctx context.Context, key string) error
}

// O valor guardado é "<fingerprint>:<pending|saleID>"
func encodeIdempotencyValue(fingerprint, value string) string {
	return fingerprint + ":" + value
}

func decodeIdempotencyValue(key, fingerprint, stored string) (IdempotencyState, string, error) {
	storedFingerprint, value, _ := strings.Cut(stored, ":")
	if storedFingerprint != fingerprint {
		return IdempotencyNew, "", fmt.Errorf("key %s: %w", key, ErrIdempotencyKeyReused)
	}
	if value == idempotencyPending {
		return IdempotencyInProgress, "", nil
	}
	return IdempotencyCompleted, value, nil
}

// RedisIdempotencyStore implementa IdempotencyStore com SETNX no Redis
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient cria o cliente e valida a conexão
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisIdempotencyStore cria uma nova instância de RedisIdempotencyStore
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, fingerprint string) (IdempotencyState, string, error) {
	k := idempotencyKeyPrefix + key
	// A chave pode expirar entre o SETNX e o GET; nesse caso tenta reservar de novo.
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := s.client.SetNX(ctx, k, encodeIdempotencyValue(fingerprint, idempotencyPending), s.ttl).Result()
		if err != nil {
			return IdempotencyNew, "", err
		}
		if reserved {
			return IdempotencyNew, "", nil
		}

		value, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return IdempotencyNew, "", err
		}
		return decodeIdempotencyValue(key, fingerprint, value)
	}
	return IdempotencyInProgress, "", nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, fingerprint, saleID string) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, encodeIdempotencyValue(fingerprint, saleID), s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

type memoryIdempotencyEntry struct {
	value   string
	expires time.Time
}

// MemoryIdempotencyStore é usado quando REDIS_ADDR não está configurado
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryIdempotencyEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryIdempotencyStore cria uma nova instância de MemoryIdempotencyStore
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &MemoryIdempotencyStore{
		entries: make(map[string]memoryIdempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key, fingerprint string) (IdempotencyState, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expires) {
		return decodeIdempotencyValue(key, fingerprint, entry.value)
	}
	s.entries[key] = memoryIdempotencyEntry{value: encodeIdempotencyValue(fingerprint, idempotencyPending), expires: now.Add(s.ttl)}
	return IdempotencyNew, "", nil
}

func (s *MemoryIdempotencyStore) Complete(_ context.Context, key, fingerprint, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryIdempotencyEntry{value: encodeIdempotencyValue(fingerprint, saleID), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
