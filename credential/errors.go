package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotSetUp is returned when an operation requires a credential
	// record and none exists.
	ErrNotSetUp = errors.New("credential: master password not set up")

	// ErrAlreadySetUp is returned by Setup when a credential record
	// already exists. Use ChangePassword to rotate or Reset to start over.
	ErrAlreadySetUp = errors.New("credential: master password already set up")

	// ErrInvalidPassword is returned by ChangePassword when the old
	// password does not verify.
	ErrInvalidPassword = errors.New("credential: invalid password")
)

// WeakPasswordError reports which policy requirements a candidate master
// password failed to meet.
type WeakPasswordError struct {
	Missing []string
}

func (e *WeakPasswordError) Error() string {
	return "credential: password too weak (missing: " + strings.Join(e.Missing, ", ") + ")"
}

// LockedError reports that password verification is suspended until the
// lockout deadline passes.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("credential: account locked, retry in %s", e.Remaining.Round(time.Second))
}

// RemainingSeconds returns the remaining lockout time in whole seconds,
// rounded up, for UI rendering.
func (e *LockedError) RemainingSeconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}
