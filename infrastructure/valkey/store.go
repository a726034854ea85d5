package valkey

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/JarvisJ/plex-ai/domains/kvstore"
	valkeylib "github.com/valkey-io/valkey-go"
)

// Store implements kvstore.Store on top of a Client. Keys handed in are
// logical keys; the client's key prefix is added on the way out and stripped
// from SCAN results.
type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) inner() valkeylib.Client {
	return s.client.conn
}

func (s *Store) fullKey(key string) string {
	return s.client.key(key)
}

func (s *Store) fullKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.fullKey(k)
	}
	return out
}

func mapNil(err error) error {
	if valkeylib.IsValkeyNil(err) {
		return kvstore.ErrNil
	}
	return err
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.inner().B().Get().Key(s.fullKey(key)).Build()
	data, err := s.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		return nil, mapNil(err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b := s.inner().B().Set().Key(s.fullKey(key)).Value(valkeylib.BinaryString(value))
	if ttl > 0 {
		return s.inner().Do(ctx, b.Ex(ttl).Build()).Error()
	}
	return s.inner().Do(ctx, b.Build()).Error()
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmd := s.inner().B().Del().Key(s.fullKeys(keys)...).Build()
	return s.inner().Do(ctx, cmd).AsInt64()
}

func (s *Store) Scan(ctx context.Context, cursor uint64, match string, count int64) (kvstore.ScanPage, error) {
	cmd := s.inner().B().Scan().Cursor(cursor).Match(s.fullKey(match)).Count(count).Build()
	entry, err := s.inner().Do(ctx, cmd).AsScanEntry()
	if err != nil {
		return kvstore.ScanPage{}, err
	}
	keys := make([]string, 0, len(entry.Elements))
	for _, k := range entry.Elements {
		keys = append(keys, s.client.logical(k))
	}
	return kvstore.ScanPage{Cursor: entry.Cursor, Keys: keys}, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	cmd := s.inner().B().Ttl().Key(s.fullKey(key)).Build()
	secs, err := s.inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, err
	}
	switch secs {
	case -2:
		return 0, kvstore.ErrNil
	case -1:
		return -1, nil
	}
	return time.Duration(secs) * time.Second, nil
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	cmd := s.inner().B().Hget().Key(s.fullKey(key)).Field(field).Build()
	v, err := s.inner().Do(ctx, cmd).ToString()
	if err != nil {
		return "", mapNil(err)
	}
	return v, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.inner().B().Hgetall().Key(s.fullKey(key)).Build()
	return s.inner().Do(ctx, cmd).AsStrMap()
}

func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.inner().B().Zcard().Key(s.fullKey(key)).Build()
	return s.inner().Do(ctx, cmd).AsInt64()
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := s.inner().B().Zrange().Key(s.fullKey(key)).
		Min(strconv.FormatInt(start, 10)).Max(strconv.FormatInt(stop, 10)).Build()
	return s.inner().Do(ctx, cmd).AsStrSlice()
}

func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := s.inner().B().Zrange().Key(s.fullKey(key)).
		Min(strconv.FormatInt(start, 10)).Max(strconv.FormatInt(stop, 10)).Rev().Build()
	return s.inner().Do(ctx, cmd).AsStrSlice()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Store) Tx() kvstore.Tx {
	return &tx{store: s}
}

// tx queues built commands and sends them wrapped in MULTI/EXEC through one DoMulti.
type tx struct {
	store *Store
	cmds  valkeylib.Commands
}

func (t *tx) HSet(key string, fields map[string]string) kvstore.Tx {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	b := t.store.inner().B().Hset().Key(t.store.fullKey(key)).FieldValue()
	for _, f := range names {
		b = b.FieldValue(f, fields[f])
	}
	t.cmds = append(t.cmds, b.Build())
	return t
}

func (t *tx) Expire(key string, ttl time.Duration) kvstore.Tx {
	cmd := t.store.inner().B().Expire().Key(t.store.fullKey(key)).Seconds(int64(ttl.Seconds())).Build()
	t.cmds = append(t.cmds, cmd)
	return t
}

func (t *tx) ZAdd(key string, score float64, member string) kvstore.Tx {
	cmd := t.store.inner().B().Zadd().Key(t.store.fullKey(key)).ScoreMember().ScoreMember(score, member).Build()
	t.cmds = append(t.cmds, cmd)
	return t
}

func (t *tx) ZRem(key string, members ...string) kvstore.Tx {
	cmd := t.store.inner().B().Zrem().Key(t.store.fullKey(key)).Member(members...).Build()
	t.cmds = append(t.cmds, cmd)
	return t
}

func (t *tx) Del(keys ...string) kvstore.Tx {
	cmd := t.store.inner().B().Del().Key(t.store.fullKeys(keys)...).Build()
	t.cmds = append(t.cmds, cmd)
	return t
}

func (t *tx) Exec(ctx context.Context) ([]int64, error) {
	if len(t.cmds) == 0 {
		return nil, nil
	}
	inner := t.store.inner()
	cmds := make(valkeylib.Commands, 0, len(t.cmds)+2)
	cmds = append(cmds, inner.B().Multi().Build())
	cmds = append(cmds, t.cmds...)
	cmds = append(cmds, inner.B().Exec().Build())

	resps := inner.DoMulti(ctx, cmds...)
	for _, r := range resps[:len(resps)-1] {
		if err := r.Error(); err != nil {
			return nil, fmt.Errorf("transaction queue: %w", err)
		}
	}
	replies, err := resps[len(resps)-1].ToArray()
	if err != nil {
		return nil, fmt.Errorf("transaction exec: %w", err)
	}
	out := make([]int64, len(replies))
	for i, msg := range replies {
		n, err := msg.AsInt64()
		if err != nil {
			return nil, fmt.Errorf("transaction reply %d: %w", i, err)
		}
		out[i] = n
	}
	t.cmds = nil
	return out, nil
}
