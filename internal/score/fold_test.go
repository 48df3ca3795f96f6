package score

import "testing"

func TestNewFolder(t *testing.T) {
	tests := []struct {
		name      string
		caseFold  bool
		diacritic bool
		in        string
		want      string
	}{
		{"identity", false, false, "Café", "Café"},
		{"case only", true, false, "Café", "café"},
		{"diacritics only", false, true, "Café", "Cafe"},
		{"both", true, true, "Café", "cafe"},
		{"german umlaut", false, true, "über", "uber"},
		{"plain ascii untouched", true, true, "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fold := NewFolder(tt.caseFold, tt.diacritic)
			if got := fold(tt.in); got != tt.want {
				t.Errorf("fold(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
