package core

import (
	"errors"
	"testing"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"SMRU", "SMRU", 0},
		{"SMRUU", "SMRU", 1},
		{"SMUR", "SMRU", 2},
		{"BHF", "MORU", 4},
		{"", "BHF", 3},
	}
	for _, tt := range tests {
		if got := EditDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("EditDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClosestMatch_TiesResolveToFirst(t *testing.T) {
	got, dist := ClosestMatch("AB", []string{"AX", "XB"})
	if got != "AX" || dist != 1 {
		t.Errorf("ClosestMatch = %q, %d; want AX, 1", got, dist)
	}
	if got, dist := ClosestMatch("AB", nil); got != "" || dist != -1 {
		t.Errorf("ClosestMatch(nil) = %q, %d; want \"\", -1", got, dist)
	}
}

func TestMatchEnum(t *testing.T) {
	allowed := DefaultSubsidiaries

	tests := []struct {
		name           string
		input          string
		want           string
		wantSuggestion string
		wantErr        bool
	}{
		{name: "exact", input: "SMRU", want: "SMRU"},
		{name: "lower case", input: "moru", want: "MORU"},
		{name: "padded", input: "  oucru ", want: "OUCRU"},
		{name: "one typo", input: "SMRUU", wantErr: true, wantSuggestion: "SMRU"},
		{name: "two typos", input: "OCRUX", wantErr: true, wantSuggestion: "OUCRU"},
		{name: "too far", input: "Wellcome", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchEnum("subsidiary", tt.input, allowed, DefaultMaxFuzzyDistance)
			if !tt.wantErr {
				if err != nil || got != tt.want {
					t.Fatalf("MatchEnum(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
				}
				return
			}

			var mismatch *OrganizationMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("MatchEnum(%q) error = %v, want *OrganizationMismatchError", tt.input, err)
			}
			if got != "" {
				t.Errorf("near miss was accepted as %q", got)
			}
			if mismatch.Suggestion != tt.wantSuggestion {
				t.Errorf("Suggestion = %q, want %q", mismatch.Suggestion, tt.wantSuggestion)
			}
		})
	}
}

func TestOrganizationMismatchError_Message(t *testing.T) {
	_, err := MatchEnum("subsidiary", "SMRUU", DefaultSubsidiaries, 2)
	if want := "invalid subsidiary 'SMRUU'. Did you mean 'SMRU'?"; err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}

	_, err = MatchEnum("subsidiary", "Acme", DefaultSubsidiaries, 0)
	if want := "invalid subsidiary 'Acme'. Must be one of: SMRU, BHF, MORU, OUCRU"; err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
