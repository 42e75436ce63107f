package security

import "testing"

func TestParseID(t *testing.T) {
	valid := map[string]int64{
		"1":     1,
		" 42 ":  42,
		"99999": 99999,
	}
	for in, want := range valid {
		got, err := ParseID(in)
		if err != nil {
			t.Errorf("ParseID(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseID(%q) = %d, want %d", in, got, want)
		}
	}

	for _, in := range []string{"", "0", "-1", "abc", "1.5", "1;drop table players"} {
		if _, err := ParseID(in); err == nil {
			t.Errorf("ParseID(%q) should have failed", in)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"tabs\tand\nnewlines\r", "tabs\tand\nnewlines\r"},
		{"null\x00byte", "nullbyte"},
		{"bell\x07escape\x1b", "bellescape"},
		{"[HEI]Valorin", "[HEI]Valorin"},
	}
	for _, tc := range cases {
		if got := SanitizeInput(tc.in); got != tc.want {
			t.Errorf("SanitizeInput(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
