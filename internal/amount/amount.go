// Package amount converts between human-readable decimal amounts and the
// fixed-point integer strings used for on-chain USDC balances. All arithmetic
// is exact: big.Int and shopspring/decimal only, never floats.
package amount

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the number of implied decimal places in USDC denominations.
const USDCDecimals int32 = 6

var ErrInvalidAmount = errors.New("invalid amount")

var (
	decimalRe    = regexp.MustCompile(`^\d+(\.\d*)?$|^\.\d+$`)
	fixedPointRe = regexp.MustCompile(`^\d+$`)
)

// Parse converts a decimal string like "12.5" into a fixed-point integer
// string with 6 implied decimals ("12500000").
func Parse(s string) (string, error) {
	return ParseWithDecimals(s, USDCDecimals)
}

// ParseWithDecimals converts a decimal string into a fixed-point integer
// string with the given number of implied decimals. Fractional digits beyond
// the scale are truncated, not rounded. Negative or malformed input fails
// with ErrInvalidAmount.
func ParseWithDecimals(s string, decimals int32) (string, error) {
	if !decimalRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.Shift(decimals).Truncate(0).BigInt().String(), nil
}

// Format renders a fixed-point integer string with 6 implied decimals as a
// decimal string, trailing fractional zeros stripped.
func Format(fp string) (string, error) {
	return FormatWithDecimals(fp, USDCDecimals)
}

// FormatWithDecimals renders a fixed-point integer string as a decimal
// string. If the fractional part is entirely zero only the whole part is
// returned.
func FormatWithDecimals(fp string, decimals int32) (string, error) {
	n, ok := new(big.Int).SetString(fp, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, fp)
	}
	scale := pow10(decimals)
	whole, frac := new(big.Int).QuoRem(n, scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String(), nil
	}
	fracStr := frac.String()
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	return whole.String() + "." + strings.TrimRight(fracStr, "0"), nil
}

// PercentageOf computes floor(total * round(fraction*100) / 100) in integer
// arithmetic. The fraction is collapsed to a whole percentage before any
// multiplication so no float ever touches the amount; the floor means
// repeated fractional payments can never overdraw a bill.
func PercentageOf(total string, fraction float64) (string, error) {
	n, ok := new(big.Int).SetString(total, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, total)
	}
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return "", fmt.Errorf("%w: fraction %v out of [0,1]", ErrInvalidAmount, fraction)
	}
	pct := big.NewInt(int64(math.Round(fraction * 100)))
	n.Mul(n, pct)
	return n.Quo(n, big.NewInt(100)).String(), nil
}

// ClampedSub returns max(a-b, 0) for two fixed-point integer strings.
func ClampedSub(a, b string) (string, error) {
	x, ok := new(big.Int).SetString(a, 10)
	if !ok || x.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok || y.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, b)
	}
	if y.Cmp(x) >= 0 {
		return "0", nil
	}
	return x.Sub(x, y).String(), nil
}

// ValidFixedPoint reports whether s is a well-formed non-negative fixed-point
// integer string.
func ValidFixedPoint(s string) bool {
	return fixedPointRe.MatchString(s)
}

// IsZero reports whether a well-formed fixed-point string equals zero.
func IsZero(s string) bool {
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return len(s) > 0
}

func pow10(decimals int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
