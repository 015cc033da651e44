// Package amount converts between human decimal amounts and the ledger's
// integer stroop representation, and models the rational prices used as
// deposit price bounds.
package amount

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the fixed precision of every amount on the ledger.
const Decimals = 7

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidPrice  = errors.New("invalid price")
)

var maxStroops = decimal.NewFromInt(math.MaxInt64)

// ParseStroops parses a positive decimal amount such as "100" or "0.0000001"
// into stroops. More than seven fractional digits is an error rather than a
// silent truncation.
func ParseStroops(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	stroops := d.Shift(Decimals)
	if !stroops.Equal(stroops.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, Decimals)
	}
	if stroops.GreaterThan(maxStroops) {
		return 0, fmt.Errorf("%w: %q exceeds the maximum amount", ErrInvalidAmount, s)
	}
	return stroops.IntPart(), nil
}

// FormatStroops renders stroops as a decimal string with trailing zeros removed.
func FormatStroops(v int64) string {
	return decimal.New(v, -Decimals).String()
}

// Price is a rational exchange rate N/D. For deposits it is the ratio of
// asset A to asset B.
type Price struct {
	N int32 `json:"n" yaml:"n"`
	D int32 `json:"d" yaml:"d"`
}

// OneToOne is the default price band endpoint.
var OneToOne = Price{N: 1, D: 1}

// Validate checks that both terms are positive.
func (p Price) Validate() error {
	if p.N <= 0 || p.D <= 0 {
		return fmt.Errorf("%w: %d/%d must have positive terms", ErrInvalidPrice, p.N, p.D)
	}
	return nil
}

// Cmp compares p and q as rationals and returns -1, 0 or +1. Both must be valid.
func (p Price) Cmp(q Price) int {
	l := int64(p.N) * int64(q.D)
	r := int64(q.N) * int64(p.D)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// Invert returns D/N.
func (p Price) Invert() Price {
	return Price{N: p.D, D: p.N}
}

// Rat returns p as a big.Rat. p must be valid.
func (p Price) Rat() *big.Rat {
	return big.NewRat(int64(p.N), int64(p.D))
}

func (p Price) String() string {
	return fmt.Sprintf("%d/%d", p.N, p.D)
}

// ParsePrice accepts "n/d" or a bare integer "n".
func ParsePrice(s string) (Price, error) {
	ns, ds, hasDen := strings.Cut(strings.TrimSpace(s), "/")
	if !hasDen {
		ds = "1"
	}
	n, err := strconv.ParseInt(strings.TrimSpace(ns), 10, 32)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}
	d, err := strconv.ParseInt(strings.TrimSpace(ds), 10, 32)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}
	p := Price{N: int32(n), D: int32(d)}
	if err := p.Validate(); err != nil {
		return Price{}, err
	}
	return p, nil
}
