package domain

import "testing"

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"sklad na moravě", "Morava"},
		{"warehouse in moravia", "Morava"},
		{"jižní morava", "Morava"},
		{"kancelář v čechách", "Čechy"},
		{"bohemia office", "Čechy"},
		{"slezsko", "Slezsko"},
		{"silesia", "Slezsko"},
		{"slovensko", "Slovensko"},
		{"sklad v praze", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := NormalizeRegion(tt.text); got != tt.want {
				t.Errorf("NormalizeRegion(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"česká republika", "CZ"},
		{"czechia", "CZ"},
		{"slovakia", "SK"},
		{"germany", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCountry(tt.text); got != tt.want {
			t.Errorf("NormalizeCountry(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
