// Package lock serialises per-device mutations.
package lock

import (
	"context"
	"errors"
)

// ErrNoCallback is returned when WithLock is called without work to run.
var ErrNoCallback = errors.New("lock: callback not provided")

// Locker runs fn while holding an exclusive lock on key. The lock is released
// when fn returns, including on error. If the lock cannot be acquired before
// ctx is done the context error is returned and fn is not called.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// DeviceKey is the lock key guarding every durable record of one device.
func DeviceKey(deviceID string) string {
	return "lock:device:" + deviceID
}

// CredentialKey guards the credential record of one email.
func CredentialKey(email string) string {
	return "lock:credentials:" + email
}
