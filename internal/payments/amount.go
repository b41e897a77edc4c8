package payments

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
)

// minorUnitThreshold disambiguates bare integer amounts: integers above it are
// assumed to already be minor units, smaller ones major units. This heuristic
// predates the explicit amountCents field and is kept for compatibility with
// older storefront clients; new callers should always send amountCents.
const minorUnitThreshold = 1000

var centsPerUnit = decimal.NewFromInt(100)

// NormalizeAmount resolves the wire amount fields into minor currency units.
// An explicit amountCents always wins. A fractional amount is treated as major
// units and rounded to the nearest cent. A bare integer falls back to the
// magnitude heuristic above.
func NormalizeAmount(amount *float64, amountCents *int64) (int64, error) {
	if amountCents != nil {
		return *amountCents, nil
	}
	if amount == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount or amountCents is required")
	}

	d := decimal.NewFromFloat(*amount)
	if !d.IsInteger() {
		return d.Mul(centsPerUnit).Round(0).IntPart(), nil
	}

	whole := d.IntPart()
	if whole > minorUnitThreshold {
		return whole, nil
	}
	return whole * 100, nil
}
