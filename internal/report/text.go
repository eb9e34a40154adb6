package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/karashiro/execgate/internal/model"
)

// TextSink writes one human-readable block per access record.
type TextSink struct {
	w     io.Writer
	color bool
}

// NewTextSink builds a text sink. mode is auto|always|never; auto enables
// decision coloring only when w is a terminal and NO_COLOR is unset.
func NewTextSink(w io.Writer, mode string) (*TextSink, error) {
	on, err := colorEnabled(mode, w)
	if err != nil {
		return nil, err
	}
	return &TextSink{w: w, color: on}, nil
}

func colorEnabled(mode string, out io.Writer) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
	default:
		return false, fmt.Errorf("invalid color mode %q (expected auto|always|never)", mode)
	}
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false, nil
	}
	f, ok := out.(*os.File)
	if !ok {
		return false, nil
	}
	fi, err := f.Stat()
	if err != nil {
		return false, nil
	}
	return fi.Mode()&os.ModeCharDevice != 0, nil
}

func (s *TextSink) decision(v string) string {
	if !s.color {
		return v
	}
	switch v {
	case "allow":
		return "\x1b[32m" + v + "\x1b[0m"
	case "deny":
		return "\x1b[31m" + v + "\x1b[0m"
	default:
		return v
	}
}

func (s *TextSink) Write(rec model.AccessRecord) error {
	var b bytes.Buffer

	if rec.Permission {
		fmt.Fprintf(&b, "FAN_OPEN_EXEC_PERM [%s]", s.decision(rec.Decision))
	} else {
		b.WriteString("notification")
	}
	if rec.PID > 0 {
		fmt.Fprintf(&b, " pid=%d", rec.PID)
	}
	b.WriteByte('\n')

	if rec.Skipped != "" {
		fmt.Fprintf(&b, "Report skipped:            %s\n", rec.Skipped)
		_, err := s.w.Write(b.Bytes())
		return err
	}

	f := rec.File
	fmt.Fprintf(&b, "File %s\n", f.Path)
	fmt.Fprintf(&b, "ID of containing device:  [%x,%x]\n", f.DevMajor, f.DevMinor)
	fmt.Fprintf(&b, "File type:                %s\n", f.Type)
	fmt.Fprintf(&b, "I-node number:            %d\n", f.Inode)
	fmt.Fprintf(&b, "Mode:                     %o (octal)\n", f.Mode)
	fmt.Fprintf(&b, "Link count:               %d\n", f.Nlink)
	fmt.Fprintf(&b, "Ownership:                UID=%d   GID=%d\n", f.UID, f.GID)
	fmt.Fprintf(&b, "Preferred I/O block size: %d bytes\n", f.BlockSize)
	fmt.Fprintf(&b, "File size:                %d bytes\n", f.Size)
	fmt.Fprintf(&b, "Blocks allocated:         %d\n", f.Blocks)
	fmt.Fprintf(&b, "Last status change:       %s\n", f.Change.Format(time.ANSIC))
	fmt.Fprintf(&b, "Last file access:         %s\n", f.Access.Format(time.ANSIC))
	fmt.Fprintf(&b, "Last file modification:   %s\n", f.Modify.Format(time.ANSIC))

	_, err := s.w.Write(b.Bytes())
	return err
}

func (s *TextSink) Close() error { return nil }
