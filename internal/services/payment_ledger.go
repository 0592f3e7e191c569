package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrLedgerInvalidInput indicates an empty or malformed aggregation request.
	ErrLedgerInvalidInput = errors.New("payment ledger: invalid input")
)

// PaymentLedgerDeps bundles collaborators required to construct a ledger aggregator.
type PaymentLedgerDeps struct {
	Billing repositories.BillingRepository
}

type paymentLedger struct {
	billing repositories.BillingRepository
}

var _ PaymentLedgerAggregator = (*paymentLedger)(nil)

// NewPaymentLedgerAggregator constructs the billing-history payment aggregator.
func NewPaymentLedgerAggregator(deps PaymentLedgerDeps) (PaymentLedgerAggregator, error) {
	if deps.Billing == nil {
		return nil, errors.New("payment ledger: billing repository is required")
	}
	return &paymentLedger{billing: deps.Billing}, nil
}

// PriorPaid sums PaidAmount across every billing record of the given type
// whose source set intersects sourceOrderIDs. The record identified by
// excludeBillingID is skipped so an edit backs out its own prior payment
// before the new one is added.
func (l *paymentLedger) PriorPaid(ctx context.Context, billingType BillingType, sourceOrderIDs []string, excludeBillingID string) (decimal.Decimal, error) {
	ids, err := normaliseSourceIDs(sourceOrderIDs)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrLedgerInvalidInput, err)
	}

	records, err := l.billing.ListBySourceOrders(ctx, billingType, ids)
	if err != nil {
		return decimal.Zero, classifyRepositoryError(err, nil, nil)
	}

	total := decimal.Zero
	for _, record := range records {
		if excludeBillingID != "" && record.ID == excludeBillingID {
			continue
		}
		total = total.Add(record.PaidAmount)
	}
	return total, nil
}
