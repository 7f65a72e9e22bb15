package textutil

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"collapse", "  Intro \t and\nagenda  ", "Intro and agenda"},
		{"control", "Q\x003 results", "Q3 results"},
		{"nfc", "Café", "Café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitleTruncates(t *testing.T) {
	long := make([]rune, MaxTitleRunes+20)
	for i := range long {
		long[i] = 'é'
	}
	got := []rune(NormalizeTitle(string(long)))
	if len(got) != MaxTitleRunes {
		t.Fatalf("expected %d runes, got %d", MaxTitleRunes, len(got))
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("picture in picture"); got != "Picture In Picture" {
		t.Fatalf("TitleCase = %q", got)
	}
}
