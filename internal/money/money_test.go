package money

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "12.50", want: "12.50"},
		{name: "integer", input: "7", want: "7.00"},
		{name: "negative", input: "-3.2", want: "-3.20"},
		{name: "high precision preserved", input: "0.005", want: "0.01"}, // String renders at scale 2
		{name: "empty", input: "", wantErr: true},
		{name: "words", input: "ten dollars", wantErr: true},
		{name: "double dot", input: "1.2.3", wantErr: true},
		{name: "nan", input: "NaN", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("error = %v, want ErrInvalidAmount", err)
				}
				return
			}
			if got := m.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"33.333", "33.33"},
		{"33.335", "33.34"}, // half rounds up
		{"33.334999", "33.33"},
		{"-0.005", "-0.01"}, // ties away from zero
		{"2.675", "2.68"},   // the classic float trap; exact decimal gets it right
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := MustParse(tt.input).Round().String(); got != tt.want {
				t.Errorf("Round(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDivRound(t *testing.T) {
	// 100.00 / 3 must be 33.33, not 33.333... and not a float approximation.
	share, err := MustParse("100.00").DivRound(3)
	if err != nil {
		t.Fatalf("DivRound failed: %v", err)
	}
	if share.String() != "33.33" {
		t.Errorf("100.00/3 = %s, want 33.33", share)
	}

	if _, err := MustParse("1.00").DivRound(0); err == nil {
		t.Error("expected error for division by zero")
	}
}

func TestArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 == 0.3 exactly; the whole point of not using float64.
	sum := MustParse("0.1").Add(MustParse("0.2"))
	if !sum.Equal(MustParse("0.3")) {
		t.Errorf("0.1 + 0.2 = %s, want 0.30", sum)
	}

	// Many small additions do not drift.
	total := Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(FromCents(1))
	}
	if total.String() != "10.00" {
		t.Errorf("1000 cents = %s, want 10.00", total)
	}
}

func TestFromCents(t *testing.T) {
	if got := FromCents(-650).String(); got != "-6.50" {
		t.Errorf("FromCents(-650) = %s, want -6.50", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := MustParse("19.99")
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "19.99" {
		t.Errorf("Marshal = %s, want 19.99", data)
	}

	var out Money
	if err := json.Unmarshal([]byte(`"42.01"`), &out); err != nil {
		t.Fatalf("Unmarshal string failed: %v", err)
	}
	if !out.Equal(MustParse("42.01")) {
		t.Errorf("Unmarshal = %s, want 42.01", out)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &out); err == nil {
		t.Error("expected error for malformed amount")
	}
}

func TestSQLRoundTrip(t *testing.T) {
	v, err := MustParse("5.5").Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != "5.50" {
		t.Errorf("Value = %v, want 5.50", v)
	}

	var m Money
	if err := m.Scan("5.50"); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !m.Equal(MustParse("5.5")) {
		t.Errorf("Scan = %s, want 5.50", m)
	}

	if err := m.Scan(3.14); err == nil {
		t.Error("expected error scanning float64; amounts must never pass through binary floating point")
	}
}
