package cache

import (
	"context"
	"errors"
	"time"
)

// ErrDeserialization means a stored entry could not be decoded. Callers treat it as a miss.
var ErrDeserialization = errors.New("cache entry is not valid JSON")

type CacheStats struct {
	Keys      int64  `json:"keys"`
	TotalSize int64  `json:"total_size"`
	HumanSize string `json:"human_size"`
}

// ICacheUsecase stores JSON and binary payloads under keys shaped
// {namespace}:{kind}:{scope}:{digest}, where scope is a user id or "shared".
type ICacheUsecase interface {
	MakeKey(kind string, userID int64, args ...any) string
	MakeSharedKey(kind string, args ...any) string

	// Get decodes the entry into dest. It reports false when the key is absent.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value as JSON. ttl <= 0 uses the configured default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetBinary(ctx context.Context, key string) ([]byte, bool, error)
	SetBinary(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) (bool, error)
	DeletePattern(ctx context.Context, prefix string) (int64, error)
	ClearUserCache(ctx context.Context, userID int64) (int64, error)
	ClearAll(ctx context.Context) (int64, error)

	UserStats(ctx context.Context, userID int64) (CacheStats, error)
	DefaultTTL() time.Duration
}
