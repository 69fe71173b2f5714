package sym

import "testing"

func TestNameLookup(t *testing.T) {
	if got := Name(Claim); got != "claim" {
		t.Errorf("Name(Claim) = %q, want %q", got, "claim")
	}
	if got := Name("x"); got != "" {
		t.Errorf("Name of unknown glyph should be empty, got %q", got)
	}
}

func TestAllCoversEveryGlyph(t *testing.T) {
	all := All()
	if len(all) != len(names) {
		t.Errorf("All() returned %d glyphs, registry has %d", len(all), len(names))
	}
	for _, g := range all {
		if Name(g) == "" {
			t.Errorf("glyph %q has no name", g)
		}
	}
}
