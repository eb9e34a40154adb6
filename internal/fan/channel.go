//go:build linux

package fan

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// BufferRecords bounds how many records one read cycle can return.
const BufferRecords = 200

// BufferSize is the read buffer capacity in bytes. The kernel only returns
// whole records, so a buffer this size never splits one.
const BufferSize = BufferRecords * metadataSize

// Channel is the kernel conduit for a single marked mount: it delivers
// event records and accepts permission responses.
type Channel struct {
	fd int
}

// Open initializes a content-class fanotify group and marks mountPoint for
// execute-open permission events. The group is non-blocking with unlimited
// queue and marks; event descriptors arrive O_RDONLY|O_LARGEFILE|O_CLOEXEC.
func Open(mountPoint string) (*Channel, error) {
	fd, err := unix.FanotifyInit(
		unix.FAN_CLOEXEC|unix.FAN_CLASS_CONTENT|unix.FAN_NONBLOCK|unix.FAN_UNLIMITED_QUEUE|unix.FAN_UNLIMITED_MARKS,
		unix.O_RDONLY|unix.O_LARGEFILE|unix.O_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("fanotify init: %w", err)
	}
	if err := unix.FanotifyMark(fd, unix.FAN_MARK_ADD|unix.FAN_MARK_MOUNT, unix.FAN_OPEN_EXEC_PERM, unix.AT_FDCWD, mountPoint); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("fanotify mark %s: %w", mountPoint, err)
	}
	return &Channel{fd: fd}, nil
}

// Wait blocks until the channel is readable. Interrupted waits are retried,
// not surfaced.
func (c *Channel) Wait() error {
	for {
		fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll event channel: %w", err)
		}
		return nil
	}
}

// Read fills buf with as many whole records as are queued right now. It
// returns (0, nil) when no more data is currently available; that is the
// drain sentinel, not an error.
func (c *Channel) Read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, buf)
		switch err {
		case nil:
			if n < 0 {
				n = 0
			}
			return n, nil
		case unix.EAGAIN:
			return 0, nil
		case unix.EINTR:
			continue
		default:
			return 0, fmt.Errorf("read event channel: %w", err)
		}
	}
}

// WriteResponse answers the permission request attached to fd. Exactly one
// response per permission event; the requesting process stays blocked until
// the kernel sees it.
func (c *Channel) WriteResponse(fd int32, allow bool) error {
	resp := uint32(unix.FAN_DENY)
	if allow {
		resp = unix.FAN_ALLOW
	}
	var buf [responseSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], uint32(fd))
	binary.NativeEndian.PutUint32(buf[4:8], resp)
	if _, err := unix.Write(c.fd, buf[:]); err != nil {
		return fmt.Errorf("write permission response: %w", err)
	}
	return nil
}

func (c *Channel) Close() error {
	return unix.Close(c.fd)
}
