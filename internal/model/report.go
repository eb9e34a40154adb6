package model

import "time"

// File type labels used in reports. Derived from the S_IFMT bits of the
// stat snapshot.
const (
	TypeBlockDevice = "block device"
	TypeCharDevice  = "character device"
	TypeDirectory   = "directory"
	TypeFIFO        = "FIFO/pipe"
	TypeSymlink     = "symlink"
	TypeRegular     = "regular file"
	TypeSocket      = "socket"
	TypeUnknown     = "unknown"
)

// FileReport is a point-in-time snapshot of an accessed file, resolved from
// the descriptor attached to a single event.
type FileReport struct {
	Path      string    `json:"path"`
	DevMajor  uint32    `json:"dev_major"`
	DevMinor  uint32    `json:"dev_minor"`
	Type      string    `json:"type"`
	Inode     uint64    `json:"inode"`
	Mode      uint32    `json:"mode"`
	Nlink     uint64    `json:"nlink"`
	UID       uint32    `json:"uid"`
	GID       uint32    `json:"gid"`
	BlockSize int64     `json:"block_size"`
	Size      int64     `json:"size"`
	Blocks    int64     `json:"blocks"`
	Change    time.Time `json:"change_time"`
	Access    time.Time `json:"access_time"`
	Modify    time.Time `json:"modify_time"`
}

// AccessRecord is one reported access: the event context plus, when
// inspection succeeded, the file snapshot.
type AccessRecord struct {
	Timestamp  string      `json:"timestamp"`
	PID        int32       `json:"pid,omitempty"`
	Permission bool        `json:"permission"`
	Decision   string      `json:"decision,omitempty"`
	Skipped    string      `json:"skipped,omitempty"`
	File       *FileReport `json:"file,omitempty"`
}
