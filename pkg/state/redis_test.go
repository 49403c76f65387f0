// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestInitRedisClient(t *testing.T) {
	_, mr := setupTestRedis(t)

	client, err := InitRedisClient(context.Background(), RedisConfig{Host: mr.Host(), Port: mr.Port(), MaxRetries: 1})
	if err != nil {
		t.Fatalf("InitRedisClient() error = %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestRedisAudienceCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisAudienceCache(client)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "s1"); ok || err != nil {
		t.Fatalf("Get() on empty cache = %v, %v, expected miss", ok, err)
	}

	result := &audience.Result{
		SegmentID:         "s1",
		Count:             2,
		UserIDs:           []string{"u1", "u2"},
		MatchedRuleLabels: []string{"orders_count >= 3"},
		ComputedAt:        time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := cache.Set(ctx, result, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, expected hit", ok, err)
	}
	if got.Count != 2 || len(got.UserIDs) != 2 || got.MatchedRuleLabels[0] != "orders_count >= 3" {
		t.Errorf("Get() = %+v, expected the cached result", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "s1"); ok {
		t.Errorf("Get() after TTL = hit, expected miss")
	}

	if err := cache.Set(ctx, result, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Invalidate(ctx, "s1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "s1"); ok {
		t.Errorf("Get() after Invalidate = hit, expected miss")
	}

	if err := cache.Set(ctx, result, 0); err != nil {
		t.Fatalf("Set() with zero TTL error = %v", err)
	}
	if mr.Exists(audienceKey("s1")) {
		t.Errorf("Set() with zero TTL stored an entry, expected none")
	}
}

func TestRedisAudienceCache_CorruptEntryIsMiss(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisAudienceCache(client)

	mr.Set(audienceKey("s1"), "{not json")
	if _, ok, err := cache.Get(context.Background(), "s1"); ok || err != nil {
		t.Errorf("Get() on corrupt entry = %v, %v, expected miss", ok, err)
	}
}

func TestRedisLocker_SerializesHolders(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 5*time.Second)
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "grant:i1:u1")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Errorf("two holders were inside the lock at once")
	}
}

func TestRedisLocker_GivesUp(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Minute, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, ErrLockNotAcquired) {
		t.Errorf("Lock() on held key error = %v, expected ErrLockNotAcquired", err)
	}
}

func TestRedisLocker_UnlockKeepsForeignToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	// the lease lapses and another holder takes the key
	mr.FastForward(2 * time.Second)
	mr.Set(lockKeyPrefix+"k", "someone-else")

	unlock()
	if got, _ := mr.Get(lockKeyPrefix + "k"); got != "someone-else" {
		t.Errorf("lock value after stale unlock = %q, expected the new holder's token", got)
	}
}

func TestRedisSnapshotStore(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewRedisSnapshotStore(client)
	ctx := context.Background()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	must(s.SetAttribute(ctx, "org1", "u1", LocationAttribute, rule.StringValue("loc-a")))
	must(s.SetAttribute(ctx, "org1", "u1", "email_opt_in", rule.StringValue("true")))
	must(s.SetAttribute(ctx, "org1", "u1", "tags", rule.ListValue(rule.Str("vegan"), rule.Str("student"))))
	must(s.SetAttribute(ctx, "org1", "u2", LocationAttribute, rule.StringValue("loc-b")))
	must(s.SetAttribute(ctx, "org2", "u9", LocationAttribute, rule.StringValue("loc-a")))

	for i := 0; i < 3; i++ {
		if _, err := s.IncrementAttribute(ctx, "org1", "u1", "orders_count", 1); err != nil {
			t.Fatalf("IncrementAttribute() error = %v", err)
		}
	}
	total, err := s.IncrementAttribute(ctx, "org1", "u1", "total_spend", 12.5)
	if err != nil || total != 12.5 {
		t.Errorf("IncrementAttribute() = %v, %v, expected 12.5", total, err)
	}

	attrs, err := s.LoadSnapshot(ctx, "org1", "u1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	tests := []struct {
		name     string
		r        rule.SegmentRule
		expected bool
	}{
		{"counter is numeric", rule.New("orders_count", rule.OpGte, rule.NumberValue(3)), true},
		{"spend is numeric", rule.New("total_spend", rule.OpGt, rule.NumberValue(12)), true},
		{"string flag", rule.New("email_opt_in", rule.OpEq, rule.StringValue("true")), true},
		{"list attribute intersects", rule.New("tags", rule.OpIn, rule.ListValue(rule.Str("student"))), true},
		{"location", rule.New(LocationAttribute, rule.OpEq, rule.StringValue("loc-a")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Evaluate(tt.r, attrs); got != tt.expected {
				t.Errorf("Evaluate(%s) = %v, expected %v", rule.Label(tt.r), got, tt.expected)
			}
		})
	}

	all, err := s.LoadSnapshots(ctx, "org1", nil)
	if err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}
	if len(all) != 2 || all[0].CustomerID != "u1" || all[1].CustomerID != "u2" {
		t.Errorf("LoadSnapshots() = %+v, expected u1 and u2 in order", all)
	}

	atA, err := s.LoadSnapshots(ctx, "org1", []string{"loc-a"})
	if err != nil {
		t.Fatalf("LoadSnapshots(loc-a) error = %v", err)
	}
	if len(atA) != 1 || atA[0].CustomerID != "u1" || atA[0].OrganizationID != "org1" {
		t.Errorf("LoadSnapshots(loc-a) = %+v, expected only u1 of org1", atA)
	}

	unknown, err := s.LoadSnapshot(ctx, "org1", "nobody")
	if err != nil || len(unknown) != 0 {
		t.Errorf("LoadSnapshot(nobody) = %v, %v, expected no attributes", unknown, err)
	}
}

func TestRedisSnapshotStore_KeepsKinds(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisSnapshotStore(client)
	ctx := context.Background()

	if err := s.SetAttribute(ctx, "org1", "u1", "postal_code", rule.StringValue("01234")); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}
	if err := s.SetAttribute(ctx, "org1", "u1", "age", rule.NumberValue(30)); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}
	if err := s.SetAttribute(ctx, "org1", "u1", "note", rule.StringValue("[not a list")); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}
	if _, err := s.IncrementAttribute(ctx, "org1", "u1", "age", 1); err != nil {
		t.Fatalf("IncrementAttribute() error = %v", err)
	}
	if got := mr.HGet(attributeKey("org1", "u1"), "postal_code"); got != "s:01234" {
		t.Errorf("stored postal_code = %q, expected s:01234", got)
	}

	attrs, err := s.LoadSnapshot(ctx, "org1", "u1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	postal := attrs["postal_code"]
	if postal.IsNumber() || postal.Str != "01234" {
		t.Errorf("postal_code = %v, expected the string 01234", postal)
	}
	if !rule.Evaluate(rule.New("postal_code", rule.OpEq, rule.StringValue("01234")), attrs) {
		t.Error(`Evaluate(postal_code = "01234") = false, expected true`)
	}
	if age := attrs["age"]; !age.IsNumber() || age.Num != 31 {
		t.Errorf("age = %v, expected the number 31", age)
	}
	if note := attrs["note"]; note.IsList || note.Str != "[not a list" {
		t.Errorf("note = %v, expected the raw string", note)
	}
}

func TestRedisSnapshotStore_NumericLocation(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewRedisSnapshotStore(client)
	ctx := context.Background()

	if err := s.SetAttribute(ctx, "org1", "u1", LocationAttribute, rule.NumberValue(42)); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}

	got, err := s.LoadSnapshots(ctx, "org1", []string{"42"})
	if err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}
	if len(got) != 1 || got[0].CustomerID != "u1" {
		t.Errorf("LoadSnapshots(42) = %+v, expected u1", got)
	}

	empty, err := s.LoadSnapshots(ctx, "org1", []string{""})
	if err != nil || len(empty) != 0 {
		t.Errorf("LoadSnapshots(\"\") = %+v, %v, expected nobody", empty, err)
	}
}

func TestRedisMembership(t *testing.T) {
	client, _ := setupTestRedis(t)
	m := NewRedisMembership(client)
	ctx := context.Background()

	entered, err := m.Entered(ctx, "j1", []string{"u1", "u2"})
	if err != nil || len(entered) != 2 {
		t.Fatalf("Entered() = %v, %v, expected both members on the first pass", entered, err)
	}
	if err := m.Commit(ctx, "j1", []string{"u1", "u2"}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	entered, _ = m.Entered(ctx, "j1", []string{"u2", "u3", "u1"})
	if len(entered) != 1 || entered[0] != "u3" {
		t.Errorf("Entered() = %v, expected [u3]", entered)
	}

	// u1 leaves, then comes back
	if err := m.Commit(ctx, "j1", []string{"u2"}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	entered, _ = m.Entered(ctx, "j1", []string{"u1", "u2"})
	if len(entered) != 1 || entered[0] != "u1" {
		t.Errorf("Entered() after leaving = %v, expected [u1]", entered)
	}

	if err := m.Commit(ctx, "j1", nil); err != nil {
		t.Fatalf("Commit(nil) error = %v", err)
	}
	entered, _ = m.Entered(ctx, "j1", []string{"u2"})
	if len(entered) != 1 {
		t.Errorf("Entered() after empty commit = %v, expected [u2]", entered)
	}

	if other, _ := m.Entered(ctx, "j2", []string{"u2"}); len(other) != 1 {
		t.Errorf("Entered(j2) = %v, expected journeys to be tracked separately", other)
	}
}

func TestHealthChecker(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	storeErr := errors.New("database is locked")
	storeHealthy := true
	checker := NewHealthChecker().
		AddRedis(client).
		Add("store", func(ctx context.Context) error {
			if storeHealthy {
				return nil
			}
			return storeErr
		})

	if !checker.IsHealthy(ctx) {
		t.Errorf("IsHealthy() = false, expected true")
	}

	storeHealthy = false
	if err := checker.Check(ctx); !errors.Is(err, storeErr) {
		t.Errorf("Check() error = %v, expected store failure", err)
	}

	storeHealthy = true
	mr.SetError("LOADING Redis is loading the dataset in memory")
	if checker.IsHealthy(ctx) {
		t.Errorf("IsHealthy() with Redis down = true, expected false")
	}
}
