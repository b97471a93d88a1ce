package money

import "testing"

func TestDecimal_SumThenRound(t *testing.T) {
	t.Parallel()

	// 0.1+0.2 famously is not 0.3 in binary floating point; it must be
	// after decimal summation and rounding.
	sum := FromFloat(0.1).Add(FromFloat(0.2)).Round(3)
	if got, want := sum.String(), "0.300"; got != want {
		t.Fatalf("sum=%s want %s", got, want)
	}
}

func TestDecimal_RoundHalfEven(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		places int
		want   string
	}{
		{"1.2345", 3, "1.234"}, // ties to even
		{"1.2355", 3, "1.236"},
		{"1.005", 2, "1.00"},
		{"1.015", 2, "1.02"},
		{"2.5005", 3, "2.500"},
	}
	for _, c := range cases {
		d, err := FromString(c.in)
		if err != nil {
			t.Fatalf("FromString(%q): %v", c.in, err)
		}
		if got := d.Round(c.places).String(); got != c.want {
			t.Fatalf("Round(%s, %d)=%s want %s", c.in, c.places, got, c.want)
		}
	}
}

func TestDecimal_DivMulInt(t *testing.T) {
	t.Parallel()

	// (1.8 / 3) × 31 = 18.6
	got := FromFloat(1.8).DivInt(3).MulInt(31).Round(3)
	want, err := FromString("18.600")
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if got.String() != want.String() {
		t.Fatalf("estimate=%s want %s", got, want)
	}
}
