package math

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int    // Number of decimal places
	Scale            uint64 // 10^DecimalPrecision
}

// AmountConfig is the precision of every balance and transaction amount (0.0001).
var AmountConfig = DecimalConfig{DecimalPrecision: 4, Scale: 10_000}

var (
	ErrOverflow  = errors.New("fixed-point overflow")
	ErrUnderflow = errors.New("fixed-point underflow")
	ErrParse     = errors.New("invalid decimal amount")
)

// Money is a non-negative amount stored as an integer count of 1/Scale units.
// Arithmetic never wraps: Add and Sub report ErrOverflow / ErrUnderflow instead.
type Money uint64

// MaxMoney is the largest representable amount.
const MaxMoney = Money(^uint64(0))

// FromUnits builds a Money from a whole number of major units (e.g. 5 -> 5.0000).
func FromUnits(units uint64) (Money, error) {
	if units > uint64(MaxMoney)/AmountConfig.Scale {
		return 0, ErrOverflow
	}
	return Money(units * AmountConfig.Scale), nil
}

// Add returns a + b or ErrOverflow.
func Add(a, b Money) (Money, error) {
	if a > MaxMoney-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a - b or ErrUnderflow when the result would be negative.
func Sub(a, b Money) (Money, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// ParseMoney converts a human decimal ("1.5", " 0.0001 ") to Money.
// Values with more than AmountConfig.DecimalPrecision significant fractional
// digits, negative values and values beyond MaxMoney are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrParse)
	}

	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q is negative", ErrParse, s)
	}
	// decimal.NewFromString also takes exponents ("1e9"), which would let a
	// short cell expand into an arbitrarily large integer below.
	if !isPlainDecimal(s) {
		return 0, fmt.Errorf("%w: %q", ErrParse, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, s)
	}

	precision := int32(AmountConfig.DecimalPrecision)
	if !d.Equal(d.Truncate(precision)) {
		return 0, fmt.Errorf("%w: %q has more than %d fractional digits", ErrParse, s, precision)
	}

	scaled := d.Shift(precision).BigInt()
	if !scaled.IsUint64() {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrParse, s, MaxMoney)
	}
	return Money(scaled.Uint64()), nil
}

// isPlainDecimal reports whether s is digits with at most one '.' and at
// least one digit on either side of it.
func isPlainDecimal(s string) bool {
	intPart, frac, hasDot := strings.Cut(s, ".")
	if !allDigits(intPart) {
		return false
	}
	return !hasDot || allDigits(frac)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(m)), -int32(AmountConfig.DecimalPrecision))
}

// String renders m with exactly AmountConfig.DecimalPrecision fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(int32(AmountConfig.DecimalPrecision))
}

func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalText(text []byte) error {
	v, err := ParseMoney(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
