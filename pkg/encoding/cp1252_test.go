package encoding

import "testing"

func TestLegacyRoundTrip(t *testing.T) {
	tests := []string{"", "stone_wall", "café", "Ångström"}
	for _, s := range tests {
		b := UTF8ToLegacy(s)
		if got := LegacyToUTF8(b); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

func TestUTF8ToLegacySingleByte(t *testing.T) {
	b := UTF8ToLegacy("é")
	if len(b) != 1 || b[0] != 0xE9 {
		t.Errorf("UTF8ToLegacy(é) = %v, want [0xE9]", b)
	}
}

func TestUTF8ToLegacyUnmappable(t *testing.T) {
	b := UTF8ToLegacy("a漢b")
	if string(b) != "a?b" {
		t.Errorf("UTF8ToLegacy with unmappable rune = %q, want %q", b, "a?b")
	}
}
