//go:build linux

// Package fan wraps the fanotify event channel: initialization and marking,
// non-blocking reads, permission responses, and decoding of the raw record
// stream.
package fan

import "golang.org/x/sys/unix"

// metadataSize is the fixed size of struct fanotify_event_metadata. Newer
// kernels may append info records; they are covered by Event_len and the
// decoder strides over them.
const metadataSize = 24

// responseSize is the size of struct fanotify_response.
const responseSize = 8

// Event is one decoded fanotify record.
type Event struct {
	Version uint8
	Mask    uint64
	Fd      int32
	PID     int32
}

// Overflow reports whether the kernel dropped events because the queue was
// exhausted. Overflow records carry no descriptor, so there is nothing to
// answer or inspect.
func (e Event) Overflow() bool { return e.Fd == unix.FAN_NOFD }

// PermissionRequest reports whether the record demands an explicit
// allow/deny response before the requesting process may proceed.
func (e Event) PermissionRequest() bool { return e.Mask&unix.FAN_OPEN_EXEC_PERM != 0 }
