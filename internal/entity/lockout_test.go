package entity

import (
	"testing"
	"time"
)

func TestLockout_FiveFailuresLock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var l Lockout

	for i := 1; i <= MaxUnlockAttempts; i++ {
		if l.Locked(now) {
			t.Fatalf("locked after %d failures", i-1)
		}
		l.RecordFailure(now)
		if i < MaxUnlockAttempts && l.Locked(now) {
			t.Fatalf("locked after only %d failures", i)
		}
	}

	if !l.Locked(now) {
		t.Fatal("not locked after 5 failures")
	}
	want := now.Add(LockoutDuration)
	if l.LockedUntil == nil || !l.LockedUntil.Equal(want) {
		t.Errorf("LockedUntil = %v, want %v", l.LockedUntil, want)
	}
}

func TestLockout_WindowExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var l Lockout

	for i := 0; i < MaxUnlockAttempts; i++ {
		l.RecordFailure(now)
	}

	if !l.Locked(now.Add(LockoutDuration - time.Second)) {
		t.Error("lock released before the window closed")
	}

	after := now.Add(LockoutDuration)
	if l.Locked(after) {
		t.Error("still locked after the window closed")
	}

	// The first failure after expiry starts a fresh count.
	l.RecordFailure(after)
	if l.Locked(after) {
		t.Error("single failure after expiry must not lock")
	}
	if l.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", l.Attempts)
	}
}

func TestLockout_ResetClearsEverything(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var l Lockout

	for i := 0; i < MaxUnlockAttempts; i++ {
		l.RecordFailure(now)
	}
	l.Reset()

	if l.Locked(now) {
		t.Error("still locked after reset")
	}
	if l.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", l.Attempts)
	}
}
