package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// ErrNoValidAmount is the single error all parsing failures collapse to:
// malformed input, zero, negative, or more fractional digits than the token
// carries. Callers never distinguish between these cases.
var ErrNoValidAmount = fmt.Errorf("no valid amount")

// ParseUnits converts a decimal string into a positive minor-unit integer at
// the given precision. "1.5" at 18 decimals yields 1500000000000000000.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, ErrNoValidAmount
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole = s[:i]
		frac = s[i+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return nil, ErrNoValidAmount
		}
	}
	if whole == "" && frac == "" {
		return nil, ErrNoValidAmount
	}
	if len(frac) > int(decimals) {
		return nil, ErrNoValidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, ErrNoValidAmount
	}

	// Scale to minor units: whole*10^decimals + frac padded to decimals.
	padded := frac + strings.Repeat("0", int(decimals)-len(frac))

	v, ok := new(big.Int).SetString(whole+padded, 10)
	if !ok || v.Sign() <= 0 {
		return nil, ErrNoValidAmount
	}
	return v, nil
}

// FormatUnits renders a minor-unit integer as a decimal string truncated
// (never rounded) to at most maxFrac fractional digits, with trailing zeros
// stripped.
func FormatUnits(v *big.Int, decimals uint8, maxFrac int) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}

	s := v.String()
	if len(s) <= int(decimals) {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	cut := len(s) - int(decimals)
	whole := s[:cut]
	frac := s[cut:]

	if maxFrac >= 0 && len(frac) > maxFrac {
		frac = frac[:maxFrac]
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ExceedsBalance reports whether the parsed amount is larger than the
// wallet's origin-token balance. A nil amount never exceeds anything.
func ExceedsBalance(amount, balance *big.Int) bool {
	if amount == nil {
		return false
	}
	if balance == nil {
		balance = new(big.Int)
	}
	return amount.Cmp(balance) > 0
}

// ExceedsCap reports whether the parsed amount is larger than the
// destination's per-transaction cap. A nil cap means no cap is known and
// the check is always false.
func ExceedsCap(amount, cap *big.Int) bool {
	if amount == nil || cap == nil {
		return false
	}
	return amount.Cmp(cap) > 0
}

// MaxSendable returns the largest amount that passes both checks:
// min(balance, cap-if-known).
func MaxSendable(balance, cap *big.Int) *big.Int {
	max := new(big.Int)
	if balance != nil {
		max.Set(balance)
	}
	if cap != nil && cap.Cmp(max) < 0 {
		max.Set(cap)
	}
	return max
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
