// Package policy renders allow/deny decisions for execute-open permission
// requests. This is the seam where gating logic plugs in; the gateway core
// only cares that a decision comes back for every request.
package policy

import "io"

type Decision int

const (
	Allow Decision = iota
	Deny
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Request describes one permission-class event.
type Request struct {
	// Path is the canonical path resolved from the event descriptor.
	Path string
	// PID is the process that triggered the event.
	PID int32
	// File reads the event-backed file content. Nil when no descriptor is
	// available to the policy.
	File io.Reader
}

type Policy interface {
	Decide(Request) Decision
}

type static struct {
	d Decision
}

func (s static) Decide(Request) Decision { return s.d }

// AllowAll is the pass-through gate: every request is permitted.
func AllowAll() Policy { return static{Allow} }

// DenyAll refuses every request.
func DenyAll() Policy { return static{Deny} }
