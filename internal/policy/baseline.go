package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Baseline permits execution only of files that existed at scan time and
// whose content is unchanged. Anything new or modified since the scan is
// denied.
type Baseline struct {
	sums map[string]string
}

// BuildBaseline walks root and records the sha256 sum of every regular
// executable file. Symlinks and files without any execute bit are skipped;
// files that disappear mid-walk are tolerated.
func BuildBaseline(root string) (*Baseline, error) {
	sums := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return nil
		}
		if info.Mode()&0o111 == 0 {
			return nil
		}

		sum, err := hashFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("hash %s: %w", path, err)
		}
		sums[path] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return &Baseline{sums: sums}, nil
}

// Len reports how many executables the scan recorded.
func (b *Baseline) Len() int { return len(b.sums) }

func (b *Baseline) Decide(req Request) Decision {
	want, ok := b.sums[req.Path]
	if !ok {
		// New file since the scan.
		return Deny
	}
	if req.File == nil {
		return Deny
	}
	got, err := hashReader(req.File)
	if err != nil {
		return Deny
	}
	if got != want {
		// Content changed since the scan.
		return Deny
	}
	return Allow
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashReader(f)
}

func hashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
