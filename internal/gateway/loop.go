//go:build linux

// Package gateway runs the dispatch loop: it multiplexes console input and
// the kernel event channel, answers every permission request exactly once,
// and reports metadata for every observed access.
package gateway

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/karashiro/execgate/internal/fan"
	"github.com/karashiro/execgate/internal/inspect"
	"github.com/karashiro/execgate/internal/model"
	"github.com/karashiro/execgate/internal/policy"
	"github.com/karashiro/execgate/internal/report"
)

// EventSource is the readable and answerable side of the kernel event
// channel.
type EventSource interface {
	// Wait blocks until events are readable.
	Wait() error
	// Read returns queued records, or (0, nil) when drained.
	Read(buf []byte) (int, error)
	// WriteResponse answers one permission request.
	WriteResponse(fd int32, allow bool) error
}

// Inspector resolves event descriptors to paths and status snapshots.
type Inspector interface {
	ResolvePath(fd int) (string, error)
	Snapshot(fd int, path string) (*model.FileReport, error)
}

type fdInspector struct{}

func (fdInspector) ResolvePath(fd int) (string, error) { return inspect.ResolvePath(fd) }
func (fdInspector) Snapshot(fd int, path string) (*model.FileReport, error) {
	return inspect.Snapshot(fd, path)
}

// fdReader reads the event-backed file content for content-aware policies.
type fdReader int32

func (r fdReader) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(int(r), p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

type Stats struct {
	Events      uint64
	Permissions uint64
	Allowed     uint64
	Denied      uint64
	Overflows   uint64
	Skipped     uint64
}

type Config struct {
	Source  EventSource
	Policy  policy.Policy
	Sink    report.Sink
	Console io.Reader
	Log     *logrus.Logger
}

type Loop struct {
	src     EventSource
	pol     policy.Policy
	sink    report.Sink
	console io.Reader
	log     *logrus.Logger

	buf   []byte
	stats Stats

	inspector Inspector
	closeFd   func(fd int) error
	reader    func(fd int32) io.Reader
}

func New(cfg Config) *Loop {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{
		src:       cfg.Source,
		pol:       cfg.Policy,
		sink:      cfg.Sink,
		console:   cfg.Console,
		log:       log,
		buf:       make([]byte, fan.BufferSize),
		inspector: fdInspector{},
		closeFd:   unix.Close,
		reader:    func(fd int32) io.Reader { return fdReader(fd) },
	}
}

func (l *Loop) Stats() Stats { return l.stats }

// Run waits on console input and channel readiness, draining and fully
// processing every available event between waits. It returns nil on a
// console- or context-triggered shutdown and an error on any fatal
// protocol or channel failure. A draining pass already underway is always
// finished before shutdown is honored; an abandoned permission request
// would block its requester forever.
func (l *Loop) Run(ctx context.Context) error {
	quit := make(chan struct{})
	go l.watchConsole(quit)

	done := make(chan struct{})
	defer close(done)
	ready := make(chan struct{})
	srcErr := make(chan error, 1)
	go l.watchSource(ready, srcErr, done)

	for {
		select {
		case <-quit:
			l.log.Info("console input received, stopping")
			return nil
		case <-ctx.Done():
			l.log.Info("shutdown signal received, stopping")
			return nil
		case err := <-srcErr:
			return err
		case <-ready:
			if err := l.drain(); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) watchConsole(quit chan<- struct{}) {
	r := bufio.NewReader(l.console)
	// A full line, or EOF on the console, requests shutdown.
	_, _ = r.ReadString('\n')
	close(quit)
}

func (l *Loop) watchSource(ready chan<- struct{}, srcErr chan<- error, done <-chan struct{}) {
	for {
		if err := l.src.Wait(); err != nil {
			select {
			case srcErr <- err:
			case <-done:
			}
			return
		}
		// Handshake with the loop so readiness can't be signalled faster
		// than buffers are drained.
		select {
		case ready <- struct{}{}:
		case <-done:
			return
		}
	}
}

// drain reads and processes buffers until the channel reports no more data.
func (l *Loop) drain() error {
	for {
		n, err := l.src.Read(l.buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := l.handleBuffer(l.buf[:n]); err != nil {
			return err
		}
	}
}

func (l *Loop) handleBuffer(buf []byte) error {
	d := fan.NewDecoder(buf)
	for d.Next() {
		if err := l.handleEvent(d.Event()); err != nil {
			return err
		}
	}
	return d.Err()
}

func (l *Loop) handleEvent(ev fan.Event) error {
	l.stats.Events++

	if ev.Overflow() {
		// No descriptor to answer or inspect.
		l.stats.Overflows++
		l.log.Warn("event queue overflowed, events were dropped")
		return nil
	}

	fd := int(ev.Fd)
	defer l.closeFd(fd)

	rec := model.AccessRecord{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		PID:        ev.PID,
		Permission: ev.PermissionRequest(),
	}

	path, resolveErr := l.inspector.ResolvePath(fd)

	if rec.Permission {
		l.stats.Permissions++
		decision := policy.Deny
		if resolveErr == nil {
			decision = l.pol.Decide(policy.Request{Path: path, PID: ev.PID, File: l.reader(ev.Fd)})
		}
		// The requester stays blocked until this lands, so it goes out
		// before the snapshot and report.
		if err := l.src.WriteResponse(ev.Fd, decision == policy.Allow); err != nil {
			return err
		}
		rec.Decision = decision.String()
		if decision == policy.Allow {
			l.stats.Allowed++
		} else {
			l.stats.Denied++
		}
	}

	if resolveErr != nil {
		l.stats.Skipped++
		rec.Skipped = resolveErr.Error()
		l.log.WithError(resolveErr).Warn("skipping report for unresolvable descriptor")
		return l.sink.Write(rec)
	}

	file, err := l.inspector.Snapshot(fd, path)
	if err != nil {
		l.stats.Skipped++
		rec.Skipped = err.Error()
		l.log.WithError(err).WithField("path", path).Warn("skipping report, status snapshot failed")
		return l.sink.Write(rec)
	}

	rec.File = file
	return l.sink.Write(rec)
}
