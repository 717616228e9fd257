// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("report:1", "value-1")

	got, ok := c.Get("report:1")
	if !ok {
		t.Fatal("Get returned miss for a fresh entry")
	}
	if got.(string) != "value-1" {
		t.Errorf("Get = %v, want value-1", got)
	}

	if _, ok := c.Get("report:2"); ok {
		t.Error("Get returned a value for a key that was never set")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Minute)
	c.SetWithTTL("short", 42, 10*time.Millisecond)

	if _, ok := c.Get("short"); !ok {
		t.Fatal("entry missing before its TTL")
	}

	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("entry served after its TTL")
	}

	stats := c.GetStats()
	if stats.Evictions == 0 {
		t.Error("expired read did not count as an eviction")
	}
	if stats.Keys != 0 {
		t.Errorf("Keys = %d after expiry, want 0", stats.Keys)
	}
}

func TestCacheClear(t *testing.T) {
	c := New(time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	c.Clear()

	stats := c.GetStats()
	if stats.Keys != 0 {
		t.Errorf("Keys = %d after Clear, want 0", stats.Keys)
	}
	if stats.Evictions != 5 {
		t.Errorf("Evictions = %d after Clear, want 5", stats.Evictions)
	}
	if _, ok := c.Get("k0"); ok {
		t.Error("entry survived Clear")
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(time.Minute)
	c.Set("gone", 1)
	c.Set("kept", 2)

	c.Delete("gone")
	c.Delete("never-existed")

	if _, ok := c.Get("gone"); ok {
		t.Error("deleted entry still served")
	}
	if _, ok := c.Get("kept"); !ok {
		t.Error("unrelated entry removed by Delete")
	}
	if got := c.GetStats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1 (missing keys are not evictions)", got)
	}
}

func TestCacheHitRate(t *testing.T) {
	c := New(time.Minute)

	if rate := c.HitRate(); rate != 0.0 {
		t.Errorf("HitRate on unused cache = %f, want 0", rate)
	}

	c.Set("k", 1)
	c.Get("k")
	c.Get("k")
	c.Get("missing")
	c.Get("missing")

	if rate := c.HitRate(); rate != 50.0 {
		t.Errorf("HitRate = %f, want 50", rate)
	}

	stats := c.GetStats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("Hits/Misses = %d/%d, want 2/2", stats.Hits, stats.Misses)
	}
}

func TestCacheBackgroundSweep(t *testing.T) {
	c := New(15 * time.Millisecond)
	c.Set("stale", 1)

	// Without any reads, only the sweep can remove the entry.
	deadline := time.Now().Add(time.Second)
	for c.GetStats().Keys != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("w%d:%d", worker, j%10)
				c.Set(key, j)
				c.Get(key)
				if j%50 == 0 {
					c.Clear()
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestGenerateKey(t *testing.T) {
	type params struct {
		StudentID int64 `json:"student_id"`
		SubjectID int64 `json:"subject_id"`
	}

	a := GenerateKey("abilities", params{StudentID: 7, SubjectID: 3})
	b := GenerateKey("abilities", params{StudentID: 7, SubjectID: 3})
	if a != b {
		t.Errorf("equal params produced different keys: %s vs %s", a, b)
	}

	other := GenerateKey("abilities", params{StudentID: 7, SubjectID: 4})
	if a == other {
		t.Error("different params produced the same key")
	}

	otherMethod := GenerateKey("sessions", params{StudentID: 7, SubjectID: 3})
	if a == otherMethod {
		t.Error("different methods produced the same key")
	}
}
