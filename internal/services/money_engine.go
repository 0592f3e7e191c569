package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "github.com/bizledger/api/internal/domain"
)

var (
	// ErrMoneyInvalidInput indicates a charge or percentage outside the accepted range.
	ErrMoneyInvalidInput = errors.New("money engine: invalid input")
)

var (
	oneHundred = decimal.NewFromInt(100)
)

// MoneyEngine runs the deterministic pricing pipeline for billing records.
// It holds no state and performs no I/O; the same inputs always yield the
// same totals.
type MoneyEngine struct{}

// NewMoneyEngine constructs the pricing pipeline.
func NewMoneyEngine() *MoneyEngine {
	return &MoneyEngine{}
}

// Compute prices the given charge lines: each line is discounted by its own
// percentage, the nets are summed, then the record-level discount and tax
// percentages are applied in sequence. All derived amounts are rounded to two
// decimal places.
func (e *MoneyEngine) Compute(lines []ChargeLine, discountPct, taxPct decimal.Decimal) (BillingTotals, error) {
	if len(lines) == 0 {
		return BillingTotals{}, fmt.Errorf("%w: at least one charge line is required", ErrMoneyInvalidInput)
	}
	if err := validatePercent("discount", discountPct); err != nil {
		return BillingTotals{}, err
	}
	if err := validatePercent("tax", taxPct); err != nil {
		return BillingTotals{}, err
	}

	totalAmount := decimal.Zero
	for _, line := range lines {
		if line.Charge.IsNegative() {
			return BillingTotals{}, fmt.Errorf("%w: charge for %s must not be negative", ErrMoneyInvalidInput, line.SourceOrderRef)
		}
		if err := validatePercent("line discount", line.Discount); err != nil {
			return BillingTotals{}, fmt.Errorf("%w for %s", err, line.SourceOrderRef)
		}
		net := line.Charge.Sub(line.Charge.Mul(line.Discount).Div(oneHundred)).Round(2)
		totalAmount = totalAmount.Add(net)
	}

	discountAmount := totalAmount.Mul(discountPct).Div(oneHundred).Round(2)
	taxableAmount := totalAmount.Sub(discountAmount)
	taxAmount := taxableAmount.Mul(taxPct).Div(oneHundred).Round(2)
	finalTotal := taxableAmount.Add(taxAmount)

	return domain.BillingTotals{
		TotalAmount:    totalAmount,
		DiscountAmount: discountAmount,
		TaxableAmount:  taxableAmount,
		TaxAmount:      taxAmount,
		FinalTotal:     finalTotal,
	}, nil
}

func validatePercent(field string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(oneHundred) {
		return fmt.Errorf("%w: %s percentage must be between 0 and 100", ErrMoneyInvalidInput, field)
	}
	return nil
}
