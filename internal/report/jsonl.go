package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/karashiro/execgate/internal/model"
)

// JSONLSink writes one JSON object per line. Each record is flushed as it
// is written so the stream can be followed live; the buffer only coalesces
// the marshalled object and its newline into a single write.
type JSONLSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: bufio.NewWriterSize(w, 64*1024)}
}

func (s *JSONLSink) Write(rec model.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
