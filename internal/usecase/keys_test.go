package usecase

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Chicken Breast", "chicken breast"},
		{"Chicken-Breast ", "chicken breast"},
		{"  olive   oil  ", "olive oil"},
		{"crème fraîche", "cr me fra che"},
		{"egg (large)", "egg large"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeKey(tt.input); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
