package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeClient is an in-memory stand-in for the store client. It covers
// exactly the command subset the repository uses and tracks TTLs and
// call counts so tests can assert on them.
type fakeClient struct {
	mu       sync.Mutex
	strings  map[string]string
	hashes   map[string]map[string]string
	sets     map[string]map[string]struct{}
	counters map[string]int64
	ttls     map[string]time.Duration

	setCalls  int
	mgetCalls int
	failNext  map[string]error
}

var _ Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		strings:  map[string]string{},
		hashes:   map[string]map[string]string{},
		sets:     map[string]map[string]struct{}{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
		failNext: map[string]error{},
	}
}

// fail injects an error for the next invocation of the named command
func (f *fakeClient) fail(command string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[command] = err
}

func (f *fakeClient) takeFailure(command string) error {
	if err, ok := f.failNext[command]; ok {
		delete(f.failNext, command)
		return err
	}
	return nil
}

func (f *fakeClient) exists(key string) bool {
	if _, ok := f.strings[key]; ok {
		return true
	}
	if _, ok := f.hashes[key]; ok {
		return true
	}
	if _, ok := f.sets[key]; ok {
		return true
	}
	return false
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (f *fakeClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if err := f.takeFailure("incr"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	f.counters[key]++
	cmd.SetVal(f.counters[key])
	return cmd
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if err := f.takeFailure("get"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	value, ok := f.strings[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx)
	if err := f.takeFailure("set"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	f.setCalls++
	f.strings[key] = toString(value)
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if err := f.takeFailure("del"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	var removed int64
	for _, key := range keys {
		if f.exists(key) {
			removed++
		}
		delete(f.strings, key)
		delete(f.hashes, key)
		delete(f.sets, key)
		delete(f.ttls, key)
	}
	cmd.SetVal(removed)
	return cmd
}

func (f *fakeClient) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mgetCalls++
	cmd := redis.NewSliceCmd(ctx)
	if err := f.takeFailure("mget"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	values := make([]interface{}, len(keys))
	for i, key := range keys {
		if value, ok := f.strings[key]; ok {
			values[i] = value
		}
	}
	cmd.SetVal(values)
	return cmd
}

func (f *fakeClient) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if err := f.takeFailure("hset"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	hash, ok := f.hashes[key]
	if !ok {
		hash = map[string]string{}
		f.hashes[key] = hash
	}
	var added int64
	for i := 0; i+1 < len(values); i += 2 {
		field := toString(values[i])
		if _, present := hash[field]; !present {
			added++
		}
		hash[field] = toString(values[i+1])
	}
	cmd.SetVal(added)
	return cmd
}

func (f *fakeClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewMapStringStringCmd(ctx)
	if err := f.takeFailure("hgetall"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	result := map[string]string{}
	for field, value := range f.hashes[key] {
		result[field] = value
	}
	cmd.SetVal(result)
	return cmd
}

func (f *fakeClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if err := f.takeFailure("expire"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	if !f.exists(key) {
		cmd.SetVal(false)
		return cmd
	}
	f.ttls[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func (f *fakeClient) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if err := f.takeFailure("sadd"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	set, ok := f.sets[key]
	if !ok {
		set = map[string]struct{}{}
		f.sets[key] = set
	}
	var added int64
	for _, member := range members {
		m := toString(member)
		if _, present := set[m]; !present {
			set[m] = struct{}{}
			added++
		}
	}
	cmd.SetVal(added)
	return cmd
}

func (f *fakeClient) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if err := f.takeFailure("srem"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	set := f.sets[key]
	var removed int64
	for _, member := range members {
		m := toString(member)
		if _, present := set[m]; present {
			delete(set, m)
			removed++
		}
	}
	if len(set) == 0 {
		delete(f.sets, key)
		delete(f.ttls, key)
	}
	cmd.SetVal(removed)
	return cmd
}

func (f *fakeClient) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringSliceCmd(ctx)
	if err := f.takeFailure("smembers"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	members := make([]string, 0, len(f.sets[key]))
	for member := range f.sets[key] {
		members = append(members, member)
	}
	sort.Strings(members)
	cmd.SetVal(members)
	return cmd
}

func (f *fakeClient) SCard(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if err := f.takeFailure("scard"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	cmd.SetVal(int64(len(f.sets[key])))
	return cmd
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx)
	if err := f.takeFailure("ping"); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

// hasMember reports set membership without going through a command
func (f *fakeClient) hasMember(key, member string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sets[key][member]
	return ok
}

// ttl returns the recorded TTL for a key, 0 when none was stamped
func (f *fakeClient) ttl(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// expirePrimary simulates the store dropping the primary task key,
// leaving the breadcrumb and indexes behind
func (f *fakeClient) expirePrimary(taskID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.strings, taskKey(taskID))
	delete(f.ttls, taskKey(taskID))
}
