package domain

import "github.com/shopspring/decimal"

// ChargeLine is one source-order charge fed into the money pipeline. Discount
// is the per-line discount percentage, applied before the line is summed into
// the record total.
type ChargeLine struct {
	SourceOrderRef string
	Charge         decimal.Decimal
	Discount       decimal.Decimal
}

// BillingTotals captures the staged monetary results of pricing a billing
// record: net line total, record-level discount, taxable base, tax, and the
// final payable total.
type BillingTotals struct {
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	FinalTotal     decimal.Decimal
}
