package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// WAD is the 18-decimal fixed-point unit.
var WAD = uint256.NewInt(1_000_000_000_000_000_000)

var ErrInvalidAmount = errors.New("invalid amount")

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Parse reads a base-10 amount. Hex input is rejected so that API payloads
// and stored columns share a single representation.
func Parse(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "-") {
		return nil, ErrInvalidAmount
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) *uint256.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromColumn decodes a stored amount column; an empty column is zero.
func FromColumn(s string) (*uint256.Int, error) {
	if s == "" {
		return Zero(), nil
	}
	v, err := Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: column value %q", err, s)
	}
	return v, nil
}

// String renders nil as "0".
func String(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// Clone copies v, treating nil as zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return Zero()
	}
	return v.Clone()
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return a.Clone()
	}
	return b.Clone()
}

// Add returns a+b without touching either operand. The second result reports overflow.
func Add(a, b *uint256.Int) (*uint256.Int, bool) {
	return new(uint256.Int).AddOverflow(a, b)
}

// Sub returns a-b, or zero when b > a.
func Sub(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return Zero()
	}
	return new(uint256.Int).Sub(a, b)
}
