// Package sym defines canonical symbols for claimd subsystem markers.
// These symbols are stable across logs, CLI, and documentation, and make
// log streams scannable by subsystem at a glance.
package sym

// System infrastructure symbols.
const (
	Claim      = "꩜" // claim jobs, batch orchestration, idempotency
	ClaimOpen  = "✿" // daemon startup, batch fan-out
	ClaimClose = "❀" // graceful shutdown, batch completion
	Pool       = "⊓" // automation session pool (slot accounting)
	Sched      = "✦" // scheduler ticker and batch triggers
	DB         = "⊔" // database/storage layer
	Notify     = "⟶" // outbound notifications
)

// names maps each glyph to its identifier for lookup and display.
var names = map[string]string{
	Claim:      "claim",
	ClaimOpen:  "claim_open",
	ClaimClose: "claim_close",
	Pool:       "pool",
	Sched:      "sched",
	DB:         "db",
	Notify:     "notify",
}

// Name returns the identifier for a glyph, or "" if unknown.
func Name(glyph string) string {
	return names[glyph]
}

// All returns every registered glyph.
func All() []string {
	out := make([]string, 0, len(names))
	for g := range names {
		out = append(out, g)
	}
	return out
}
