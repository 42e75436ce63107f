package store

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF8(t *testing.T) {
	if got := truncateUTF8("short", 500); got != "short" {
		t.Errorf("short input changed: %q", got)
	}

	// boundary falls inside the three-byte rune
	s := strings.Repeat("a", 499) + "雪原"
	got := truncateUTF8(s, 500)
	if len(got) != 499 {
		t.Errorf("len = %d, want 499 (cut backed off to the rune start)", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated string is not valid UTF-8: %q", got[490:])
	}

	// boundary exactly on a rune end keeps the rune
	s = strings.Repeat("a", 497) + "雪"
	if got := truncateUTF8(s, 500); len(got) != 500 {
		t.Errorf("len = %d, want the full 500 bytes", len(got))
	}
}
