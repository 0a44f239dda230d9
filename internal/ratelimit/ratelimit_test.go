package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowBurst(t *testing.T) {
	kl := New(1, 3)
	defer kl.Stop()

	passed := 0
	for i := 0; i < 5; i++ {
		if kl.Allow("guild-1") {
			passed++
		}
	}
	if passed != 3 {
		t.Errorf("passed %d requests, want the burst of 3", passed)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	kl := New(1, 1)
	defer kl.Stop()

	if !kl.Allow("guild-1") {
		t.Error("first request for guild-1 should pass")
	}
	if kl.Allow("guild-1") {
		t.Error("second request for guild-1 should be limited")
	}
	if !kl.Allow("guild-2") {
		t.Error("guild-2 has its own bucket and should pass")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	kl := New(0.1, 1)
	defer kl.Stop()

	// Drain the bucket.
	if !kl.Allow("guild-1") {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := kl.Wait(ctx, "guild-1"); err == nil {
		t.Error("Wait should fail when the context expires first")
	}
}

func TestStopIdempotent(t *testing.T) {
	kl := New(1, 1)
	kl.Stop()
	kl.Stop()
}
