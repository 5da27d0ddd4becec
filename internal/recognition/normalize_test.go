package recognition

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Jiří", "Jiri"},
		{"Novák", "Novak"},
		{"François", "Francois"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := RemoveDiacritics(tc.input); got != tc.want {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Jan-Novák", "jan novak"},
		{"jan_novak", "jan novak"},
		{"  Alice  ", "alice"},
		{"BOB", "bob"},
		{"Jiří Král", "jiri kral"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := NormalizePersonName(tc.input); got != tc.want {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizePersonName_SamePersonDifferentFormats(t *testing.T) {
	a := NormalizePersonName("Jan-Novák")
	b := NormalizePersonName("jan novak")
	if a != b {
		t.Errorf("expected %q and %q to normalize identically", a, b)
	}
}
