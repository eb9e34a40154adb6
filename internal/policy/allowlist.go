package policy

import (
	"path/filepath"
	"strings"
)

// Allowlist permits execution only under the configured path prefixes.
type Allowlist struct {
	prefixes []string
}

func NewAllowlist(prefixes []string) *Allowlist {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(p))
	}
	return &Allowlist{prefixes: cleaned}
}

func (a *Allowlist) Decide(req Request) Decision {
	for _, p := range a.prefixes {
		if req.Path == p || strings.HasPrefix(req.Path, p+string(filepath.Separator)) {
			return Allow
		}
	}
	return Deny
}
