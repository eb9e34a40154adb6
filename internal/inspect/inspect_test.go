//go:build linux

package inspect

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/karashiro/execgate/internal/model"
)

func TestResolveAndSnapshotRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 4096), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	fd := int(f.Fd())

	got, err := ResolvePath(fd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != path {
		t.Fatalf("resolved %q, want %q", got, path)
	}

	rep, err := Snapshot(fd, got)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if rep.Type != model.TypeRegular {
		t.Fatalf("type=%q want %q", rep.Type, model.TypeRegular)
	}
	if rep.Size != 4096 {
		t.Fatalf("size=%d want 4096", rep.Size)
	}
	if rep.Inode == 0 || rep.Nlink != 1 {
		t.Fatalf("unexpected inode/nlink: %+v", rep)
	}
	if rep.Mode&0o777 != 0o755 {
		t.Fatalf("mode=%o want 755 permission bits", rep.Mode&0o777)
	}
}

func TestResolvePathClosedDescriptor(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fd := int(f.Fd())
	f.Close()

	if _, err := ResolvePath(fd); err == nil {
		t.Fatal("expected error for closed descriptor")
	}
}

func TestSnapshotDirectory(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rep, err := Snapshot(int(f.Fd()), dir)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if rep.Type != model.TypeDirectory {
		t.Fatalf("type=%q want %q", rep.Type, model.TypeDirectory)
	}
}
