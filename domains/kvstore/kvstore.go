package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNil is returned by single-key reads when the key does not exist.
var ErrNil = errors.New("kvstore: nil")

// ScanPage is one page of a cursor-based key scan. Cursor 0 means the scan is complete.
type ScanPage struct {
	Cursor uint64
	Keys   []string
}

// Store is the key-value contract the cache and conversation layers depend on.
// Implementations: valkey (production) and memstore (tests, local runs).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value with an expiry. ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) (ScanPage, error)
	// TTL returns the remaining time to live, -1 when the key has no expiry
	// and ErrNil when it does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	ZCard(ctx context.Context, key string) (int64, error)
	// ZRange returns members by ascending score between ranks start and stop (inclusive, negative from the end).
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZRevRange returns members by descending score.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Tx starts a batch of writes applied together by Exec.
	Tx() Tx

	Ping(ctx context.Context) error
}

// Tx collects writes and applies them as one MULTI/EXEC (or equivalent) unit.
type Tx interface {
	HSet(key string, fields map[string]string) Tx
	Expire(key string, ttl time.Duration) Tx
	ZAdd(key string, score float64, member string) Tx
	ZRem(key string, members ...string) Tx
	Del(keys ...string) Tx
	// Exec returns one integer reply per queued command, in order.
	Exec(ctx context.Context) ([]int64, error)
}
