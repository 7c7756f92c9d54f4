package queue

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"stepnotify/internal/types"
)

// fakeRedis implements RedisClient in memory, emulating the sorted-set and
// hash commands the queue uses, including the atomic claim script.
type fakeRedis struct {
	mu     sync.Mutex
	zsets  map[string]map[string]float64
	hashes map[string]map[string]string

	failZAdd error
	failZRem error
	failEval error
	failHSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string]string),
	}
}

func (f *fakeRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failZAdd != nil {
		return redis.NewIntResult(0, f.failZAdd)
	}
	if f.zsets[key] == nil {
		f.zsets[key] = make(map[string]float64)
	}
	var added int64
	for _, m := range members {
		member := fmt.Sprint(m.Member)
		if _, ok := f.zsets[key][member]; !ok {
			added++
		}
		f.zsets[key][member] = m.Score
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeRedis) ZRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failZRem != nil {
		return redis.NewIntResult(0, f.failZRem)
	}
	var removed int64
	for _, m := range members {
		member := fmt.Sprint(m)
		if _, ok := f.zsets[key][member]; ok {
			delete(f.zsets[key], member)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) ZRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.sortedMembers(key)
	if stop < 0 {
		stop = int64(len(members)) + stop
	}
	if start > int64(len(members))-1 {
		return redis.NewStringSliceResult(nil, nil)
	}
	if stop > int64(len(members))-1 {
		stop = int64(len(members)) - 1
	}
	return redis.NewStringSliceResult(members[start:stop+1], nil)
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHSet != nil {
		return redis.NewIntResult(0, f.failHSet)
	}
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]string)
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hashes[key][fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		fields[k] = v
	}
	return redis.NewMapStringStringResult(fields, nil)
}

func (f *fakeRedis) HIncrBy(_ context.Context, key, field string, incr int64) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]string)
	}
	cur, _ := strconv.ParseInt(f.hashes[key][field], 10, 64)
	cur += incr
	f.hashes[key][field] = strconv.FormatInt(cur, 10)
	return redis.NewIntResult(cur, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := f.hashes[key]; ok {
			delete(f.hashes, key)
			removed++
		}
		if _, ok := f.zsets[key]; ok {
			delete(f.zsets, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

// Eval emulates the claim script: pop members of KEYS[0] with score <=
// ARGV[0], up to ARGV[1] of them.
func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEval != nil {
		return redis.NewCmdResult(nil, f.failEval)
	}
	max, _ := strconv.ParseFloat(fmt.Sprint(args[0]), 64)
	limit, _ := strconv.Atoi(fmt.Sprint(args[1]))

	members := f.sortedMembers(keys[0])
	claimed := make([]interface{}, 0, limit)
	for _, m := range members {
		if len(claimed) >= limit {
			break
		}
		if f.zsets[keys[0]][m] <= max {
			claimed = append(claimed, m)
			delete(f.zsets[keys[0]], m)
		}
	}
	return redis.NewCmdResult(claimed, nil)
}

// sortedMembers returns the members of a zset ordered by score. Callers
// must hold the mutex.
func (f *fakeRedis) sortedMembers(key string) []string {
	members := make([]string, 0, len(f.zsets[key]))
	for m := range f.zsets[key] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := f.zsets[key][members[i]], f.zsets[key][members[j]]
		if si == sj {
			return members[i] < members[j]
		}
		return si < sj
	})
	return members
}

// fakeClock implements types.Clock with a controllable current time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ types.Clock = (*fakeClock)(nil)
