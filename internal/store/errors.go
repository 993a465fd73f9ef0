package store

import (
	"errors"

	domainerrors "github.com/channelbriefapp/channelbrief-engine/internal/errors"
)

// ErrKeyNotFound is returned by KV.Get when no value exists for the key.
// Callers that treat absence as empty check for it with errors.Is.
var ErrKeyNotFound = errors.New("key not found")

// IsNotFound reports whether err means the key was absent rather than the
// backend failing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Unavailable wraps a backend failure as a STORAGE_UNAVAILABLE domain error.
// The operation name keeps log lines and API responses diagnosable without
// leaking backend internals.
func Unavailable(op string, err error) error {
	return domainerrors.StorageUnavailablef("storage %s failed", op).WithCause(err)
}
