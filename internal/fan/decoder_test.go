//go:build linux

package fan

import (
	"encoding/binary"
	"testing"

	"golang.org/x/sys/unix"
)

func appendRecord(buf []byte, eventLen int, vers uint8, mask uint64, fd, pid int32) []byte {
	rec := make([]byte, eventLen)
	binary.NativeEndian.PutUint32(rec[0:4], uint32(eventLen))
	rec[4] = vers
	binary.NativeEndian.PutUint16(rec[6:8], uint16(metadataSize))
	binary.NativeEndian.PutUint64(rec[8:16], mask)
	binary.NativeEndian.PutUint32(rec[16:20], uint32(fd))
	binary.NativeEndian.PutUint32(rec[20:24], uint32(pid))
	return append(buf, rec...)
}

func decodeAll(t *testing.T, buf []byte) ([]Event, error) {
	t.Helper()
	var out []Event
	d := NewDecoder(buf)
	for d.Next() {
		out = append(out, d.Event())
	}
	return out, d.Err()
}

func TestDecoderWellFormed(t *testing.T) {
	var buf []byte
	fds := []int32{10, 11, 12}
	for _, fd := range fds {
		buf = appendRecord(buf, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, fd, 100+fd)
	}

	evs, err := decodeAll(t, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs) != len(fds) {
		t.Fatalf("got %d events, want %d", len(evs), len(fds))
	}
	for i, ev := range evs {
		if ev.Fd != fds[i] {
			t.Fatalf("event %d fd=%d want %d", i, ev.Fd, fds[i])
		}
		if !ev.PermissionRequest() {
			t.Fatalf("event %d not flagged as permission request", i)
		}
		if ev.Overflow() {
			t.Fatalf("event %d wrongly flagged as overflow", i)
		}
	}
}

func TestDecoderTruncatedTrailingRecord(t *testing.T) {
	buf := appendRecord(nil, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, 5, 1)
	// A record that claims more bytes than the buffer holds.
	buf = appendRecord(buf, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, 6, 2)
	binary.NativeEndian.PutUint32(buf[metadataSize:metadataSize+4], uint32(metadataSize+8))

	evs, err := decodeAll(t, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs) != 1 || evs[0].Fd != 5 {
		t.Fatalf("got %+v, want single event with fd 5", evs)
	}
}

func TestDecoderShortTail(t *testing.T) {
	buf := appendRecord(nil, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, 5, 1)
	buf = append(buf, 0x01, 0x02, 0x03)

	evs, err := decodeAll(t, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
}

func TestDecoderVersionMismatchHaltsBuffer(t *testing.T) {
	buf := appendRecord(nil, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, 5, 1)
	buf = appendRecord(buf, metadataSize, unix.FANOTIFY_METADATA_VERSION+1, unix.FAN_OPEN_EXEC_PERM, 6, 2)
	buf = appendRecord(buf, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, 7, 3)

	evs, err := decodeAll(t, buf)
	if err != ErrVersionMismatch {
		t.Fatalf("err=%v, want ErrVersionMismatch", err)
	}
	// Nothing after the bad record may be decoded.
	if len(evs) != 1 || evs[0].Fd != 5 {
		t.Fatalf("got %+v, want only the event before the mismatch", evs)
	}
}

func TestDecoderStridesOverInfoSuffix(t *testing.T) {
	// Event_len larger than the metadata struct: extra bytes belong to the
	// record and must be skipped, not parsed as a new record.
	buf := appendRecord(nil, metadataSize+16, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, 5, 1)
	buf = appendRecord(buf, metadataSize, unix.FANOTIFY_METADATA_VERSION, 0, 6, 2)

	evs, err := decodeAll(t, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs) != 2 || evs[0].Fd != 5 || evs[1].Fd != 6 {
		t.Fatalf("got %+v, want events with fds 5 and 6", evs)
	}
}

func TestDecoderOverflowSentinel(t *testing.T) {
	buf := appendRecord(nil, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_Q_OVERFLOW, unix.FAN_NOFD, 0)

	evs, err := decodeAll(t, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if !evs[0].Overflow() {
		t.Fatalf("overflow record not detected: %+v", evs[0])
	}
	if evs[0].PermissionRequest() {
		t.Fatalf("overflow record must not be a permission request")
	}
}

func TestDecoderIdempotent(t *testing.T) {
	var buf []byte
	for fd := int32(3); fd < 9; fd++ {
		buf = appendRecord(buf, metadataSize, unix.FANOTIFY_METADATA_VERSION, unix.FAN_OPEN_EXEC_PERM, fd, fd*10)
	}

	first, err1 := decodeAll(t, buf)
	second, err2 := decodeAll(t, buf)
	if err1 != nil || err2 != nil {
		t.Fatalf("decode: %v / %v", err1, err2)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDecoderEmptyBuffer(t *testing.T) {
	evs, err := decodeAll(t, nil)
	if err != nil || len(evs) != 0 {
		t.Fatalf("got %d events, err=%v; want none", len(evs), err)
	}
}
