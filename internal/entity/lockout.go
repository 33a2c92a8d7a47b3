package entity

import "time"

// Lockout parameters.
const (
	// MaxUnlockAttempts is the number of consecutive failed verifications
	// that triggers a lockout.
	MaxUnlockAttempts = 5

	// LockoutDuration is how long an entity stays locked.
	LockoutDuration = 5 * time.Minute
)

// Lockout is the per-entity failed-attempt state machine. It is part of
// entity metadata so it survives process restarts. States: unlocked with a
// failure count, or locked until a deadline.
type Lockout struct {
	Attempts    int        `json:"attempts,omitempty"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
}

// Locked reports whether a lockout window is open at now. An attempt made
// while locked is rejected without consuming an attempt slot, regardless
// of whether the secret was correct.
func (l *Lockout) Locked(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// RecordFailure counts one failed verification. Reaching MaxUnlockAttempts
// opens a lockout window of LockoutDuration. An expired window is cleared
// before counting, so a stale lock does not eat the first fresh attempt.
func (l *Lockout) RecordFailure(now time.Time) {
	if l.LockedUntil != nil && !now.Before(*l.LockedUntil) {
		// Window expired; start a fresh count.
		l.LockedUntil = nil
		l.Attempts = 0
	}
	l.Attempts++
	if l.Attempts >= MaxUnlockAttempts {
		until := now.Add(LockoutDuration)
		l.LockedUntil = &until
	}
}

// Reset clears the counter and any lock after a successful verification.
func (l *Lockout) Reset() {
	l.Attempts = 0
	l.LockedUntil = nil
}
