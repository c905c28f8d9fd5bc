package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name  string
		in    decimal.NullDecimal
		valid bool
		want  string
	}{
		{"null", decimal.NullDecimal{}, false, ""},
		{"amount", decimal.NewNullDecimal(decimal.RequireFromString("1500.50")), true, "1500.5"},
		{"effort", decimal.NewNullDecimal(decimal.RequireFromString("0.3333")), true, "0.3333"},
		{"large", decimal.NewNullDecimal(decimal.RequireFromString("99999999.99")), true, "99999999.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toPgNumeric(tt.in)
			if got.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v", got.Valid, tt.valid)
			}
			if !tt.valid {
				return
			}
			back := decimal.NewFromBigInt(got.Int, got.Exp)
			if !back.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("round trip = %s, want %s", back, tt.want)
			}
		})
	}
}

func TestToPgText(t *testing.T) {
	if got := toPgText("  "); got.Valid {
		t.Errorf("blank text should be NULL, got %+v", got)
	}
	got := toPgText(" BL-01 ")
	if !got.Valid || got.String != "BL-01" {
		t.Errorf("toPgText = %+v, want BL-01", got)
	}
	if fromPgText(got) != "BL-01" {
		t.Errorf("fromPgText = %q", fromPgText(got))
	}
}

func TestToPgDate(t *testing.T) {
	if toPgDate(nil).Valid {
		t.Error("nil date should be NULL")
	}
	d := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	got := toPgDate(&d)
	if !got.Valid || !got.Time.Equal(d) {
		t.Errorf("toPgDate = %+v, want %v", got, d)
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.New()
	if got := fromPgUUID(toPgUUID(id)); got != id {
		t.Errorf("round trip = %s, want %s", got, id)
	}
}

func TestJSONList(t *testing.T) {
	if got := string(jsonList(nil)); got != "[]" {
		t.Errorf("jsonList(nil) = %s, want []", got)
	}
	list, err := parseJSONList(jsonList([]string{"G-1", "G-2"}))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0] != "G-1" || list[1] != "G-2" {
		t.Errorf("parseJSONList = %v", list)
	}
	if _, err := parseJSONList([]byte("{")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
