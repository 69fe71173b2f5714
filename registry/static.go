package registry

import (
	"context"

	"github.com/halcyonlabs/claimd/claim"
)

// StaticRegistry serves a fixed target list, typically loaded from
// configuration. Useful for small installs and tests; no persistence.
type StaticRegistry struct {
	targets []claim.Target
}

// NewStaticRegistry creates a registry over a fixed target list
func NewStaticRegistry(targets []claim.Target) *StaticRegistry {
	return &StaticRegistry{targets: targets}
}

// ListTargets returns a copy of the configured targets
func (r *StaticRegistry) ListTargets(ctx context.Context) ([]claim.Target, error) {
	out := make([]claim.Target, len(r.targets))
	copy(out, r.targets)
	return out, nil
}
