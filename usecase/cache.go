package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	domainCache "github.com/JarvisJ/plex-ai/domains/cache"
	"github.com/JarvisJ/plex-ai/domains/kvstore"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

const (
	sharedScope      = "shared"
	userDigestLen    = 8
	sharedDigestLen  = 16
	scanPageSize     = 100
	defaultNamespace = "plex"
)

type cacheService struct {
	store      kvstore.Store
	namespace  string
	defaultTTL time.Duration
}

func NewCacheService(store kvstore.Store, namespace string, defaultTTL time.Duration) domainCache.ICacheUsecase {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if defaultTTL <= 0 {
		defaultTTL = 7 * 24 * time.Hour
	}
	return &cacheService{
		store:      store,
		namespace:  namespace,
		defaultTTL: defaultTTL,
	}
}

func (s *cacheService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// MakeKey builds a user-scoped key. The digest covers the JSON encoding of
// args; map keys are emitted sorted so equal inputs give equal keys.
func (s *cacheService) MakeKey(kind string, userID int64, args ...any) string {
	return fmt.Sprintf("%s:%s:%d:%s", s.namespace, kind, userID, digest(args, userDigestLen))
}

// MakeSharedKey builds a key visible to every user, with a longer digest.
func (s *cacheService) MakeSharedKey(kind string, args ...any) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.namespace, kind, sharedScope, digest(args, sharedDigestLen))
}

func digest(args []any, n int) string {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		// Unencodable args still need a stable key; fall back to their printed form.
		payload = []byte(fmt.Sprintf("%v", args))
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])[:n]
}

func (s *cacheService) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func (s *cacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNil) {
		metrics.CacheLookup("json", false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheLookup("json", false)
		logrus.WithError(err).WithField("key", key).Warn("[CACHE] corrupt entry")
		return false, fmt.Errorf("%w: %s", domainCache.ErrDeserialization, key)
	}
	metrics.CacheLookup("json", true)
	return true, nil
}

func (s *cacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return s.store.Set(ctx, key, data, s.ttlOrDefault(ttl))
}

func (s *cacheService) GetBinary(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNil) {
		metrics.CacheLookup("binary", false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	metrics.CacheLookup("binary", true)
	return data, true, nil
}

func (s *cacheService) SetBinary(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.store.Set(ctx, key, data, s.ttlOrDefault(ttl))
}

func (s *cacheService) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.store.Del(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeletePattern removes every key starting with prefix.
func (s *cacheService) DeletePattern(ctx context.Context, prefix string) (int64, error) {
	return s.deleteMatching(ctx, prefix+"*")
}

// ClearUserCache removes every kind cached for one user. Shared entries and
// other users are untouched.
func (s *cacheService) ClearUserCache(ctx context.Context, userID int64) (int64, error) {
	n, err := s.deleteMatching(ctx, s.userPattern(userID))
	if err == nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "deleted": n}).Info("[CACHE] user cache cleared")
	}
	return n, err
}

func (s *cacheService) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.deleteMatching(ctx, s.namespace+":*")
	if err == nil {
		logrus.WithField("deleted", n).Warn("[CACHE] namespace cleared")
	}
	return n, err
}

func (s *cacheService) userPattern(userID int64) string {
	return s.namespace + ":*:" + strconv.FormatInt(userID, 10) + ":*"
}

// deleteMatching scans in pages and deletes each page's matches until the
// cursor comes back to 0.
func (s *cacheService) deleteMatching(ctx context.Context, match string) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		page, err := s.store.Scan(ctx, cursor, match, scanPageSize)
		if err != nil {
			return total, fmt.Errorf("scan %s: %w", match, err)
		}
		if len(page.Keys) > 0 {
			n, err := s.store.Del(ctx, page.Keys...)
			if err != nil {
				return total, fmt.Errorf("delete %s: %w", match, err)
			}
			total += n
		}
		cursor = page.Cursor
		if cursor == 0 {
			break
		}
	}
	metrics.CacheDeleted(total)
	return total, nil
}

// UserStats counts a user's cached keys and their payload size.
func (s *cacheService) UserStats(ctx context.Context, userID int64) (domainCache.CacheStats, error) {
	var (
		cursor uint64
		stats  domainCache.CacheStats
	)
	match := s.userPattern(userID)
	for {
		page, err := s.store.Scan(ctx, cursor, match, scanPageSize)
		if err != nil {
			return stats, err
		}
		for _, k := range page.Keys {
			data, err := s.store.Get(ctx, k)
			if err != nil {
				continue
			}
			stats.Keys++
			stats.TotalSize += int64(len(data))
		}
		cursor = page.Cursor
		if cursor == 0 {
			break
		}
	}
	stats.HumanSize = humanize.Bytes(uint64(stats.TotalSize))
	return stats, nil
}
