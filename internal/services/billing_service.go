package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/bizledger/api/internal/domain"
	"github.com/bizledger/api/internal/platform/requestctx"
	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrBillingInvalidInput indicates missing or malformed billing parameters.
	ErrBillingInvalidInput = errors.New("billing: invalid input")
	// ErrBillingNotFound indicates the billing record does not exist.
	ErrBillingNotFound = errors.New("billing: record not found")
	// ErrBillingCustomerNotFound indicates the referenced customer does not exist.
	ErrBillingCustomerNotFound = errors.New("billing: customer not found")
	// ErrBillingCustomerMismatch indicates the sources or the stored record belong to a different customer.
	ErrBillingCustomerMismatch = errors.New("billing: customer mismatch")
)

// BillingServiceDeps bundles collaborators required to construct a billing service.
type BillingServiceDeps struct {
	Billing       repositories.BillingRepository
	ServiceOrders repositories.ServiceOrderRepository
	POSOrders     repositories.POSOrderRepository
	Customers     repositories.CustomerRepository
	Resolver      SourceResolver
	Ledger        PaymentLedgerAggregator
	Money         *MoneyEngine
	Sequences     SequenceService
	Events        BillingEventPublisher
	Clock         func() time.Time
}

type billingService struct {
	billing       repositories.BillingRepository
	serviceOrders repositories.ServiceOrderRepository
	posOrders     repositories.POSOrderRepository
	customers     repositories.CustomerRepository
	resolver      SourceResolver
	ledger        PaymentLedgerAggregator
	money         *MoneyEngine
	sequences     SequenceService
	events        BillingEventPublisher
	clock         func() time.Time
	locks         *sourceKeyLocks
}

var _ BillingService = (*billingService)(nil)

// NewBillingService assembles the billing record lifecycle service.
func NewBillingService(deps BillingServiceDeps) (BillingService, error) {
	if deps.Billing == nil {
		return nil, errors.New("billing service: billing repository is required")
	}
	if deps.ServiceOrders == nil {
		return nil, errors.New("billing service: service order repository is required")
	}
	if deps.POSOrders == nil {
		return nil, errors.New("billing service: pos order repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("billing service: source resolver is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("billing service: payment ledger is required")
	}
	if deps.Money == nil {
		return nil, errors.New("billing service: money engine is required")
	}
	if deps.Sequences == nil {
		return nil, errors.New("billing service: sequence service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &billingService{
		billing:       deps.Billing,
		serviceOrders: deps.ServiceOrders,
		posOrders:     deps.POSOrders,
		customers:     deps.Customers,
		resolver:      deps.Resolver,
		ledger:        deps.Ledger,
		money:         deps.Money,
		sequences:     deps.Sequences,
		events:        deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		locks: newSourceKeyLocks(),
	}, nil
}

func (s *billingService) Create(ctx context.Context, cmd CreateBillingCommand) (BillingResult, error) {
	ids, err := s.validateBillingInput(cmd.Type, cmd.CustomerRef, cmd.SourceOrderIDs, cmd.PaidAmount, cmd.Discount, cmd.Tax, cmd.Date)
	if err != nil {
		return BillingResult{}, err
	}

	unlock := s.locks.acquire(lockKeys(cmd.Type, ids))
	defer unlock()

	views, err := s.resolveAndCheck(ctx, cmd.Type, cmd.CustomerRef, ids)
	if err != nil {
		return BillingResult{}, err
	}

	totals, err := s.money.Compute(chargeLines(views), cmd.Discount, cmd.Tax)
	if err != nil {
		return BillingResult{}, fmt.Errorf("%w: %v", ErrBillingInvalidInput, err)
	}

	priorPaid, err := s.ledger.PriorPaid(ctx, cmd.Type, ids, "")
	if err != nil {
		return BillingResult{}, err
	}
	totalPaid := priorPaid.Add(cmd.PaidAmount)
	status := domain.DerivePaymentStatus(totalPaid, totals.FinalTotal)

	invoice, err := s.sequences.NextInvoiceNumber(ctx)
	if err != nil {
		return BillingResult{}, err
	}

	now := s.clock()
	record := domain.BillingRecord{
		ID:             invoice,
		Invoice:        invoice,
		Date:           cmd.Date.UTC(),
		CustomerRef:    cmd.CustomerRef,
		Type:           cmd.Type,
		Sources:        billingSources(views),
		SourceOrderIDs: ids,
		PaidAmount:     cmd.PaidAmount,
		TotalPaid:      totalPaid,
		TotalAmount:    totals.TotalAmount,
		Discount:       cmd.Discount,
		DiscountAmount: totals.DiscountAmount,
		TaxableAmount:  totals.TaxableAmount,
		Tax:            cmd.Tax,
		TaxAmount:      totals.TaxAmount,
		FinalTotal:     totals.FinalTotal,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.billing.Insert(ctx, record); err != nil {
		return BillingResult{}, classifyRepositoryError(err, nil, ErrBillingInvalidInput)
	}

	warnings := s.propagateStatus(ctx, record, ids, status)
	s.publishEvent(ctx, BillingEventCreated, record)

	return BillingResult{Record: record, Warnings: warnings}, nil
}

func (s *billingService) Get(ctx context.Context, billingID string) (BillingRecord, error) {
	id := strings.TrimSpace(billingID)
	if id == "" {
		return BillingRecord{}, fmt.Errorf("%w: billing id is required", ErrBillingInvalidInput)
	}
	record, err := s.billing.FindByID(ctx, id)
	if err != nil {
		return BillingRecord{}, classifyRepositoryError(err, ErrBillingNotFound, nil)
	}
	return record, nil
}

func (s *billingService) List(ctx context.Context, filter BillingListFilter) (domain.CursorPage[BillingRecord], error) {
	repoFilter := repositories.BillingListFilter{
		CustomerRef:   strings.TrimSpace(filter.CustomerRef),
		SourceOrderID: strings.TrimSpace(filter.SourceOrderID),
		Status:        filter.Status,
		DateRange:     domain.RangeQuery[time.Time]{From: filter.DateFrom, To: filter.DateTo},
		Pagination:    filter.Pagination,
	}
	page, err := s.billing.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[BillingRecord]{}, classifyRepositoryError(err, nil, nil)
	}
	return page, nil
}

func (s *billingService) Update(ctx context.Context, cmd UpdateBillingCommand) (BillingResult, error) {
	billingID := strings.TrimSpace(cmd.BillingID)
	if billingID == "" {
		return BillingResult{}, fmt.Errorf("%w: billing id is required", ErrBillingInvalidInput)
	}

	existing, err := s.billing.FindByID(ctx, billingID)
	if err != nil {
		return BillingResult{}, classifyRepositoryError(err, ErrBillingNotFound, nil)
	}
	if existing.CustomerRef != cmd.CustomerRef {
		return BillingResult{}, fmt.Errorf("%w: record belongs to customer %s", ErrBillingCustomerMismatch, existing.CustomerRef)
	}
	if existing.Type != cmd.Type {
		return BillingResult{}, fmt.Errorf("%w: billing type cannot change", ErrBillingInvalidInput)
	}

	// Omitted amounts and date carry the stored values forward.
	paid := existing.PaidAmount
	if cmd.PaidAmount != nil {
		paid = *cmd.PaidAmount
	}
	discount := existing.Discount
	if cmd.Discount != nil {
		discount = *cmd.Discount
	}
	tax := existing.Tax
	if cmd.Tax != nil {
		tax = *cmd.Tax
	}
	date := existing.Date
	if cmd.Date != nil {
		date = *cmd.Date
	}

	ids, err := s.validateBillingInput(cmd.Type, cmd.CustomerRef, cmd.SourceOrderIDs, paid, discount, tax, date)
	if err != nil {
		return BillingResult{}, err
	}

	// Lock the union of old and new sources so a concurrent edit touching
	// either set serialises behind this one.
	unlock := s.locks.acquire(lockKeys(cmd.Type, unionIDs(existing.SourceOrderIDs, ids)))
	defer unlock()

	views, err := s.resolveAndCheck(ctx, cmd.Type, cmd.CustomerRef, ids)
	if err != nil {
		return BillingResult{}, err
	}

	totals, err := s.money.Compute(chargeLines(views), discount, tax)
	if err != nil {
		return BillingResult{}, fmt.Errorf("%w: %v", ErrBillingInvalidInput, err)
	}

	priorPaid, err := s.ledger.PriorPaid(ctx, cmd.Type, ids, billingID)
	if err != nil {
		return BillingResult{}, err
	}
	totalPaid := priorPaid.Add(paid)
	status := domain.DerivePaymentStatus(totalPaid, totals.FinalTotal)

	record := existing
	record.Date = date.UTC()
	record.Sources = billingSources(views)
	record.SourceOrderIDs = ids
	record.PaidAmount = paid
	record.TotalPaid = totalPaid
	record.TotalAmount = totals.TotalAmount
	record.Discount = discount
	record.DiscountAmount = totals.DiscountAmount
	record.TaxableAmount = totals.TaxableAmount
	record.Tax = tax
	record.TaxAmount = totals.TaxAmount
	record.FinalTotal = totals.FinalTotal
	record.Status = status
	record.UpdatedAt = s.clock()

	if err := s.billing.Update(ctx, record); err != nil {
		return BillingResult{}, classifyRepositoryError(err, ErrBillingNotFound, nil)
	}

	warnings := s.propagateStatus(ctx, record, ids, status)
	s.publishEvent(ctx, BillingEventUpdated, record)

	return BillingResult{Record: record, Warnings: warnings}, nil
}

// Delete removes the billing record. Source-order payment statuses are left
// untouched; they reflect the last recompute and are not rolled back.
func (s *billingService) Delete(ctx context.Context, billingID string) error {
	id := strings.TrimSpace(billingID)
	if id == "" {
		return fmt.Errorf("%w: billing id is required", ErrBillingInvalidInput)
	}

	record, err := s.billing.FindByID(ctx, id)
	if err != nil {
		return classifyRepositoryError(err, ErrBillingNotFound, nil)
	}

	unlock := s.locks.acquire(lockKeys(record.Type, record.SourceOrderIDs))
	defer unlock()

	if err := s.billing.Delete(ctx, id); err != nil {
		return classifyRepositoryError(err, ErrBillingNotFound, nil)
	}

	s.publishEvent(ctx, BillingEventDeleted, record)
	return nil
}

func (s *billingService) validateBillingInput(billingType BillingType, customerRef string, sourceOrderIDs []string, paid, discount, tax decimal.Decimal, date time.Time) ([]string, error) {
	switch billingType {
	case domain.BillingTypeService, domain.BillingTypePOS:
	default:
		return nil, fmt.Errorf("%w: unknown billing type %q", ErrBillingInvalidInput, string(billingType))
	}
	if strings.TrimSpace(customerRef) == "" {
		return nil, fmt.Errorf("%w: customer reference is required", ErrBillingInvalidInput)
	}
	if paid.IsNegative() {
		return nil, fmt.Errorf("%w: paid amount must not be negative", ErrBillingInvalidInput)
	}
	if err := validatePercent("discount", discount); err != nil {
		return nil, fmt.Errorf("%w: discount percentage must be between 0 and 100", ErrBillingInvalidInput)
	}
	if err := validatePercent("tax", tax); err != nil {
		return nil, fmt.Errorf("%w: tax percentage must be between 0 and 100", ErrBillingInvalidInput)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrBillingInvalidInput)
	}
	if date.After(s.clock()) {
		return nil, fmt.Errorf("%w: date must not be in the future", ErrBillingInvalidInput)
	}
	ids, err := normaliseSourceIDs(sourceOrderIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: at least one source order id is required", ErrBillingInvalidInput)
	}
	return ids, nil
}

func (s *billingService) resolveAndCheck(ctx context.Context, billingType BillingType, customerRef string, ids []string) ([]SourceOrderView, error) {
	if s.customers != nil {
		if _, err := s.customers.FindByID(ctx, customerRef); err != nil {
			if isRepositoryNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrBillingCustomerNotFound, customerRef)
			}
			return nil, classifyRepositoryError(err, nil, nil)
		}
	}

	views, err := s.resolver.Resolve(ctx, billingType, ids)
	if err != nil {
		return nil, err
	}
	for _, view := range views {
		if view.CustomerRef != customerRef {
			return nil, fmt.Errorf("%w: source order %s belongs to customer %s", ErrBillingCustomerMismatch, view.ID, view.CustomerRef)
		}
	}
	return views, nil
}

// propagateStatus pushes the recomputed payment status onto every source
// order. Failures are logged and reported as warnings; the billing write is
// never rolled back.
func (s *billingService) propagateStatus(ctx context.Context, record BillingRecord, ids []string, status PaymentStatus) []string {
	logger := requestctx.Logger(ctx)
	now := s.clock()

	var warnings []string
	for _, id := range ids {
		var err error
		switch record.Type {
		case domain.BillingTypePOS:
			err = s.posOrders.UpdatePaymentStatus(ctx, id, status, now)
		default:
			err = s.serviceOrders.UpdatePaymentStatus(ctx, id, status, now)
		}
		if err != nil {
			logger.Warn("billing status propagation failed",
				zap.String("billing_id", record.ID),
				zap.String("source_order_id", id),
				zap.String("status", string(status)),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("payment status not propagated to source order %s", id))
		}
	}

	if len(warnings) > 0 {
		s.publishEvent(ctx, BillingEventPropagationFailed, record)
	}
	return warnings
}

func (s *billingService) publishEvent(ctx context.Context, eventType string, record BillingRecord) {
	if s.events == nil {
		return
	}
	message := BillingEventMessage{
		EventType:   eventType,
		BillingID:   record.ID,
		Invoice:     record.Invoice,
		BillingType: string(record.Type),
		CustomerID:  record.CustomerRef,
		Status:      string(record.Status),
		OccurredAt:  s.clock(),
	}
	if _, err := s.events.PublishBillingEvent(ctx, message); err != nil {
		requestctx.Logger(ctx).Warn("billing event publish failed",
			zap.String("event_type", eventType),
			zap.String("billing_id", record.ID),
			zap.Error(err))
	}
}

func chargeLines(views []SourceOrderView) []ChargeLine {
	lines := make([]ChargeLine, 0, len(views))
	for _, view := range views {
		lines = append(lines, ChargeLine{
			SourceOrderRef: view.ID,
			Charge:         view.Charge,
			Discount:       view.Discount,
		})
	}
	return lines
}

func billingSources(views []SourceOrderView) []BillingSource {
	sources := make([]BillingSource, 0, len(views))
	for _, view := range views {
		sources = append(sources, BillingSource{
			SourceOrderRef: view.ID,
			OrderNumber:    view.OrderNumber,
			OrderRef:       view.OrderRef,
		})
	}
	return sources
}

func lockKeys(billingType BillingType, ids []string) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, string(billingType)+":"+id)
	}
	return keys
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// sourceKeyLocks serialises billing writes per source order. Keys are always
// acquired in sorted order so overlapping sets cannot deadlock.
type sourceKeyLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSourceKeyLocks() *sourceKeyLocks {
	return &sourceKeyLocks{locks: make(map[string]*lockEntry)}
}

func (l *sourceKeyLocks) acquire(keys []string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	entries := make([]*lockEntry, 0, len(sorted))
	for _, key := range sorted {
		l.mu.Lock()
		entry, ok := l.locks[key]
		if !ok {
			entry = &lockEntry{}
			l.locks[key] = entry
		}
		entry.refs++
		l.mu.Unlock()

		entry.mu.Lock()
		entries = append(entries, entry)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		for i := len(sorted) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
			l.mu.Lock()
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(l.locks, sorted[i])
			}
			l.mu.Unlock()
		}
	}
}
