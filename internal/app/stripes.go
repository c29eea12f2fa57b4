package app

import (
	"hash/fnv"
	"sync"
)

const stripeCount = 32

func stripeOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % stripeCount)
}

// stripedMap is a map split into independently locked shards so that work on
// one key never waits behind unrelated keys.
type stripedMap[K ~string, V any] struct {
	shards [stripeCount]mapShard[K, V]
}

type mapShard[K ~string, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func newStripedMap[K ~string, V any]() *stripedMap[K, V] {
	s := &stripedMap[K, V]{}
	for i := range s.shards {
		s.shards[i].m = make(map[K]V)
	}
	return s
}

func (s *stripedMap[K, V]) shard(k K) *mapShard[K, V] {
	return &s.shards[stripeOf(string(k))]
}

func (s *stripedMap[K, V]) Load(k K) (V, bool) {
	sh := s.shard(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[k]
	return v, ok
}

func (s *stripedMap[K, V]) Store(k K, v V) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[k] = v
}

func (s *stripedMap[K, V]) Delete(k K) (V, bool) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[k]
	delete(sh.m, k)
	return v, ok
}

// DeleteIf removes k only when match approves the current value.
func (s *stripedMap[K, V]) DeleteIf(k K, match func(V) bool) bool {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[k]
	if !ok || !match(v) {
		return false
	}
	delete(sh.m, k)
	return true
}

// Update runs fn under the shard's write lock. fn returns the new value and
// whether to keep it; keep=false deletes the key.
func (s *stripedMap[K, V]) Update(k K, fn func(v V, ok bool) (V, bool)) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.m[k]
	next, keep := fn(cur, ok)
	if keep {
		sh.m[k] = next
	} else if ok {
		delete(sh.m, k)
	}
}

// View runs fn under the shard's read lock.
func (s *stripedMap[K, V]) View(k K, fn func(v V, ok bool)) {
	sh := s.shard(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[k]
	fn(v, ok)
}

// Values copies out every value, one shard at a time.
func (s *stripedMap[K, V]) Values() []V {
	var out []V
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, v := range sh.m {
			out = append(out, v)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Keys copies out every key, one shard at a time.
func (s *stripedMap[K, V]) Keys() []K {
	var out []K
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k := range sh.m {
			out = append(out, k)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *stripedMap[K, V]) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// keyedLocks serialises work per key using a fixed set of mutexes.
type keyedLocks struct {
	locks [stripeCount]sync.Mutex
}

func (l *keyedLocks) Lock(key string) (unlock func()) {
	m := &l.locks[stripeOf(key)]
	m.Lock()
	return m.Unlock
}
