package memstore

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/JarvisJ/plex-ai/domains/kvstore"
)

var errWrongType = errors.New("memstore: operation against a key holding the wrong kind of value")

// Store is an in-process kvstore.Store. It mirrors the Valkey semantics the
// application relies on: TTL expiry, glob SCAN with cursor paging, hashes and
// sorted sets. Data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time

	// cursors maps an open scan cursor to the last key it returned.
	cursors    map[uint64]string
	nextCursor uint64
}

type entry struct {
	str      []byte
	hash     map[string]string
	zset     map[string]float64
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// New creates an empty store using the wall clock.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
		cursors: make(map[uint64]string),
	}
}

// NewWithClock creates a store whose expiry decisions use now.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// lookup returns the live entry for key, dropping it if expired. Caller holds the write lock.
func (s *Store) lookup(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil
	}
	return e
}

// peek is lookup for readers; expired entries are reported missing but left in place.
func (s *Store) peek(key string) *entry {
	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return nil
	}
	return e
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.peek(key)
	if e == nil {
		return nil, kvstore.ErrNil
	}
	if e.str == nil {
		return nil, errWrongType
	}
	out := make([]byte, len(e.str))
	copy(out, e.str)
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, len(value))
	copy(data, value)
	e := &entry{str: data}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.del(keys...), nil
}

func (s *Store) del(keys ...string) int64 {
	var n int64
	for _, k := range keys {
		if s.lookup(k) != nil {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Scan walks live keys in lexical order. A cursor resumes after the last key
// of the previous page, so deleting returned keys between pages skips nothing.
// Each cursor is good for one call; an unknown cursor ends the scan.
func (s *Store) Scan(ctx context.Context, cursor uint64, match string, count int64) (kvstore.ScanPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 {
		count = 10
	}

	resume := ""
	if cursor != 0 {
		last, ok := s.cursors[cursor]
		if !ok {
			return kvstore.ScanPage{}, nil
		}
		delete(s.cursors, cursor)
		resume = last
	}

	now := s.now()
	all := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if k > resume && !e.expired(now) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	end := int(count)
	if end > len(all) {
		end = len(all)
	}

	page := kvstore.ScanPage{}
	for _, k := range all[:end] {
		if match == "" {
			page.Keys = append(page.Keys, k)
			continue
		}
		if ok, _ := path.Match(match, k); ok {
			page.Keys = append(page.Keys, k)
		}
	}
	if end < len(all) {
		s.nextCursor++
		s.cursors[s.nextCursor] = all[end-1]
		page.Cursor = s.nextCursor
	}
	return page, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.peek(key)
	if e == nil {
		return 0, kvstore.ErrNil
	}
	if e.expireAt.IsZero() {
		return -1, nil
	}
	return e.expireAt.Sub(s.now()), nil
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.peek(key)
	if e == nil {
		return "", kvstore.ErrNil
	}
	if e.hash == nil {
		return "", errWrongType
	}
	v, ok := e.hash[field]
	if !ok {
		return "", kvstore.ErrNil
	}
	return v, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]string{}
	e := s.peek(key)
	if e == nil {
		return out, nil
	}
	if e.hash == nil {
		return nil, errWrongType
	}
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.peek(key)
	if e == nil {
		return 0, nil
	}
	if e.zset == nil {
		return 0, errWrongType
	}
	return int64(len(e.zset)), nil
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.zrange(key, start, stop, false)
}

func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.zrange(key, start, stop, true)
}

func (s *Store) zrange(key string, start, stop int64, rev bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.peek(key)
	if e == nil {
		return []string{}, nil
	}
	if e.zset == nil {
		return nil, errWrongType
	}
	members := sortedMembers(e.zset)
	if rev {
		for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
			members[i], members[j] = members[j], members[i]
		}
	}

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []string{}, nil
	}
	return append([]string{}, members[start:stop+1]...), nil
}

// sortedMembers orders by score then member, as Valkey does for equal scores.
func sortedMembers(z map[string]float64) []string {
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})
	return members
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Tx() kvstore.Tx {
	return &tx{store: s}
}

// Len reports the number of live keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if !e.expired(s.now()) {
			n++
		}
	}
	return n
}

type tx struct {
	store *Store
	ops   []func() (int64, error)
}

func (t *tx) queue(op func() (int64, error)) kvstore.Tx {
	t.ops = append(t.ops, op)
	return t
}

func (t *tx) HSet(key string, fields map[string]string) kvstore.Tx {
	return t.queue(func() (int64, error) {
		e := t.store.lookup(key)
		if e == nil {
			e = &entry{hash: map[string]string{}}
			t.store.entries[key] = e
		}
		if e.hash == nil {
			return 0, errWrongType
		}
		var added int64
		for f, v := range fields {
			if _, ok := e.hash[f]; !ok {
				added++
			}
			e.hash[f] = v
		}
		return added, nil
	})
}

func (t *tx) Expire(key string, ttl time.Duration) kvstore.Tx {
	return t.queue(func() (int64, error) {
		e := t.store.lookup(key)
		if e == nil {
			return 0, nil
		}
		e.expireAt = t.store.now().Add(ttl)
		return 1, nil
	})
}

func (t *tx) ZAdd(key string, score float64, member string) kvstore.Tx {
	return t.queue(func() (int64, error) {
		e := t.store.lookup(key)
		if e == nil {
			e = &entry{zset: map[string]float64{}}
			t.store.entries[key] = e
		}
		if e.zset == nil {
			return 0, errWrongType
		}
		_, existed := e.zset[member]
		e.zset[member] = score
		if existed {
			return 0, nil
		}
		return 1, nil
	})
}

func (t *tx) ZRem(key string, members ...string) kvstore.Tx {
	return t.queue(func() (int64, error) {
		e := t.store.lookup(key)
		if e == nil {
			return 0, nil
		}
		if e.zset == nil {
			return 0, errWrongType
		}
		var n int64
		for _, m := range members {
			if _, ok := e.zset[m]; ok {
				delete(e.zset, m)
				n++
			}
		}
		if len(e.zset) == 0 {
			delete(t.store.entries, key)
		}
		return n, nil
	})
}

func (t *tx) Del(keys ...string) kvstore.Tx {
	return t.queue(func() (int64, error) {
		return t.store.del(keys...), nil
	})
}

// Exec runs every queued op under one write lock. Like EXEC, a failing op does
// not roll back the ones before it.
func (t *tx) Exec(ctx context.Context) ([]int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	out := make([]int64, 0, len(t.ops))
	var firstErr error
	for _, op := range t.ops {
		n, err := op()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out = append(out, n)
	}
	t.ops = nil
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
