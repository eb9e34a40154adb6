// Package report renders access records to a line-oriented output stream.
package report

import "github.com/karashiro/execgate/internal/model"

type Sink interface {
	Write(model.AccessRecord) error
	// Close flushes any buffered output. It does not close the underlying
	// writer; the caller owns that.
	Close() error
}
