package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Fixed-point precision of accepted values. Ledger amounts carry the six
// decimal places of USDC; token quantities follow on-chain precision.
const (
	MoneyScale int32 = 6
	TokenScale int32 = 18
	RateScale  int32 = 6

	// MaxIntegerDigits bounds the whole part of any accepted value
	MaxIntegerDigits = 15

	// maxFractionExponent bounds the written exponent, so trailing zeros past
	// the scale are tolerated but 1e-900000000 is not
	maxFractionExponent = 64
)

// CheckPrecision returns ErrInvalidAmount when d has more than scale decimal
// places or more than MaxIntegerDigits integer digits. Only the exponent and
// coefficient are inspected before the bounds hold, so the check is cheap
// even for inputs like 1e900000000.
func CheckPrecision(d decimal.Decimal, scale int32) error {
	if d.IsZero() {
		return nil
	}

	exp := d.Exponent()
	if exp > MaxIntegerDigits {
		return fmt.Errorf("value exceeds %d integer digits: %w", MaxIntegerDigits, ErrInvalidAmount)
	}
	if exp < -maxFractionExponent {
		return fmt.Errorf("value has more than %d decimal places: %w", scale, ErrInvalidAmount)
	}

	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	if digits+int(exp) > MaxIntegerDigits {
		return fmt.Errorf("value exceeds %d integer digits: %w", MaxIntegerDigits, ErrInvalidAmount)
	}
	if exp < -scale && !d.Truncate(scale).Equal(d) {
		return fmt.Errorf("value has more than %d decimal places: %w", scale, ErrInvalidAmount)
	}
	return nil
}

// CheckAmount checks a ledger amount against MoneyScale
func CheckAmount(d decimal.Decimal) error {
	return CheckPrecision(d, MoneyScale)
}
