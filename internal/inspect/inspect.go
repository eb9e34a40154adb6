//go:build linux

// Package inspect resolves event descriptors to canonical paths and file
// status snapshots.
package inspect

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/karashiro/execgate/internal/model"
)

// ResolvePath names the open file behind fd via the process's own
// descriptor table. The kernel-held duplicate is evaluated asynchronously
// relative to the owning process, so this can fail if the file has been
// unlinked in the meantime.
func ResolvePath(fd int) (string, error) {
	path, err := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd))
	if err != nil {
		return "", fmt.Errorf("resolve event descriptor: %w", err)
	}
	return path, nil
}

// Snapshot takes a status snapshot of fd. The caller owns the descriptor
// and closes it.
func Snapshot(fd int, path string) (*model.FileReport, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("stat event descriptor: %w", err)
	}
	return &model.FileReport{
		Path:      path,
		DevMajor:  unix.Major(st.Dev),
		DevMinor:  unix.Minor(st.Dev),
		Type:      typeString(st.Mode),
		Inode:     st.Ino,
		Mode:      st.Mode,
		Nlink:     uint64(st.Nlink),
		UID:       st.Uid,
		GID:       st.Gid,
		BlockSize: int64(st.Blksize),
		Size:      st.Size,
		Blocks:    st.Blocks,
		Change:    time.Unix(st.Ctim.Unix()),
		Access:    time.Unix(st.Atim.Unix()),
		Modify:    time.Unix(st.Mtim.Unix()),
	}, nil
}

func typeString(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFBLK:
		return model.TypeBlockDevice
	case unix.S_IFCHR:
		return model.TypeCharDevice
	case unix.S_IFDIR:
		return model.TypeDirectory
	case unix.S_IFIFO:
		return model.TypeFIFO
	case unix.S_IFLNK:
		return model.TypeSymlink
	case unix.S_IFREG:
		return model.TypeRegular
	case unix.S_IFSOCK:
		return model.TypeSocket
	default:
		return model.TypeUnknown
	}
}
