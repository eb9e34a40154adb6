//go:build linux

package fan

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

// ErrVersionMismatch means a record's version tag differs from the compiled
// protocol version. The rest of the stream cannot be trusted, so callers
// must stop processing entirely.
var ErrVersionMismatch = errors.New("fanotify metadata version mismatch")

// Decoder walks one read buffer record by record. It never reads past the
// buffer length: a truncated trailing record ends the sequence silently.
type Decoder struct {
	buf []byte
	off int
	ev  Event
	err error
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Next advances to the next record, returning false when the buffer is
// exhausted or decoding cannot continue. Err tells the two apart.
func (d *Decoder) Next() bool {
	if d.err != nil {
		return false
	}
	rest := d.buf[d.off:]
	if len(rest) < metadataSize {
		return false
	}
	eventLen := int(binary.NativeEndian.Uint32(rest[0:4]))
	if eventLen < metadataSize || eventLen > len(rest) {
		// Truncated or malformed trailing record, never a real event.
		return false
	}
	vers := rest[4]
	if vers != unix.FANOTIFY_METADATA_VERSION {
		d.err = ErrVersionMismatch
		return false
	}
	d.ev = Event{
		Version: vers,
		Mask:    binary.NativeEndian.Uint64(rest[8:16]),
		Fd:      int32(binary.NativeEndian.Uint32(rest[16:20])),
		PID:     int32(binary.NativeEndian.Uint32(rest[20:24])),
	}
	d.off += eventLen
	return true
}

// Event returns the record decoded by the last successful Next.
func (d *Decoder) Event() Event { return d.ev }

func (d *Decoder) Err() error { return d.err }
