// Package lock takes an advisory, key-scoped file lock around a check.
//
// The lock lives next to the entry, at key+".lock", and is held with
// flock(2): it is released by the kernel when the process exits. Only
// cooperating hashit processes honour it. On platforms without flock,
// Acquire fails with store.ErrNotImplemented.
package lock
