// Package money は小数2桁の金額文字列と最小単位の整数を相互に変換する。
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount は金額文字列を解釈できないことを表す。
var ErrInvalidAmount = errors.New("金額の形式が不正です")

// ErrOverflow は計算結果が表現できる金額の上限を超えたことを表す。
var ErrOverflow = errors.New("金額が上限を超えています")

// maxUnits は最小単位に変換しても桁あふれしない整数部の上限。
const maxUnits = (math.MaxInt64 - 99) / 100

// Parse は "12.50" のような金額文字列を最小単位（1/100）の整数に変換する。
// 小数部は2桁まで。負の金額は受け付けない。
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: 空の文字列", ErrInvalidAmount)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxUnits {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || strings.ContainsAny(frac, "+-") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return units*100 + cents, nil
}

// Format は最小単位の整数を小数2桁の金額文字列に変換する。
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Mul は単価に数量を掛けた金額を返す。負の値は受け付けない。
func Mul(cents, quantity int64) (int64, error) {
	if cents < 0 || quantity < 0 {
		return 0, fmt.Errorf("%w: %d x %d", ErrInvalidAmount, cents, quantity)
	}
	if quantity != 0 && cents > math.MaxInt64/quantity {
		return 0, fmt.Errorf("%w: %d x %d", ErrOverflow, cents, quantity)
	}
	return cents * quantity, nil
}

// Add は2つの金額の和を返す。負の値は受け付けない。
func Add(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrInvalidAmount, a, b)
	}
	if a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}
