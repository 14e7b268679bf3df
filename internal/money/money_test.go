package money

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{in: "12.50", want: 1250},
		{in: "12.5", want: 1250},
		{in: "12", want: 1200},
		{in: "0.07", want: 7},
		{in: " 3.00 ", want: 300},
		{in: "1500.", want: 150000},
		{in: "92233720368547757.99", want: math.MaxInt64 - 8},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q)でエラーが発生: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	for _, in := range []string{"", "abc", "1.234", "-1.00", "1.-5", ".50", "1.2x", "92233720368547759", "92233720368547758.00"} {
		t.Run("不正な値_"+in, func(t *testing.T) {
			t.Parallel()

			if _, err := Parse(in); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidAmount", in, err)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := map[int64]string{
		0:      "0.00",
		7:      "0.07",
		1250:   "12.50",
		150000: "1500.00",
		-305:   "-3.05",
	}
	for in, want := range tests {
		if got := Format(in); got != want {
			t.Errorf("Format(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestMulAndAdd(t *testing.T) {
	t.Parallel()

	t.Run("単価と数量の積を返すこと", func(t *testing.T) {
		t.Parallel()

		got, err := Mul(250, 3)
		if err != nil {
			t.Fatalf("Mul()でエラーが発生: %v", err)
		}
		if got != 750 {
			t.Errorf("Mul(250, 3) = %d, want 750", got)
		}
	})

	t.Run("桁あふれする積はErrOverflowになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Mul(math.MaxInt64/2+1, 2); !errors.Is(err, ErrOverflow) {
			t.Errorf("Mul() error = %v, want ErrOverflow", err)
		}
	})

	t.Run("負の値はErrInvalidAmountになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Mul(-1, 2); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Mul() error = %v, want ErrInvalidAmount", err)
		}
		if _, err := Add(1, -2); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Add() error = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("桁あふれする和はErrOverflowになること", func(t *testing.T) {
		t.Parallel()

		if got, err := Add(900, 100); err != nil || got != 1000 {
			t.Errorf("Add(900, 100) = %d, %v, want 1000, nil", got, err)
		}
		if _, err := Add(math.MaxInt64, 1); !errors.Is(err, ErrOverflow) {
			t.Errorf("Add() error = %v, want ErrOverflow", err)
		}
	})
}
