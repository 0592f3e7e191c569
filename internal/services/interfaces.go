package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/bizledger/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderKind          = domain.OrderKind
	BillingType        = domain.BillingType
	PaymentStatus      = domain.PaymentStatus
	ServiceOrder       = domain.ServiceOrder
	POSOrder           = domain.POSOrder
	POSLineItem        = domain.POSLineItem
	BillingRecord      = domain.BillingRecord
	BillingSource      = domain.BillingSource
	BillingTotals      = domain.BillingTotals
	ChargeLine         = domain.ChargeLine
	Customer           = domain.Customer
	SourceOrderView    = domain.SourceOrderView
	SystemHealthReport = domain.SystemHealthReport
)

// SequenceService hands out monotonic, collision-free sequence numbers and
// formatted document identifiers backed by transactional counters. Allocated
// numbers are never reclaimed, so gaps appear when a downstream write fails.
type SequenceService interface {
	Next(ctx context.Context, scope, name string, opts SequenceOptions) (SequenceValue, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// SequenceOptions controls how sequence values are incremented and formatted.
type SequenceOptions struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
	Prefix       string
	PadLength    int
}

// SequenceValue carries both the raw counter value and its formatted form.
type SequenceValue struct {
	Value     int64
	Formatted string
}

// OrderIdentityService mints immutable order identity records with typed,
// collision-free order numbers.
type OrderIdentityService interface {
	Mint(ctx context.Context, cmd MintOrderCommand) (Order, error)
}

// MintOrderCommand describes the identity record to mint.
type MintOrderCommand struct {
	Kind        OrderKind
	CustomerRef string
	Date        time.Time
}

// SourceResolver loads and expands the source orders referenced by a billing
// request, dispatching on the billing type.
type SourceResolver interface {
	Resolve(ctx context.Context, billingType BillingType, sourceOrderIDs []string) ([]SourceOrderView, error)
}

// PaymentLedgerAggregator sums payments recorded across the billing history
// for a set of source orders.
type PaymentLedgerAggregator interface {
	// PriorPaid returns the cumulative paid amount over every billing record
	// whose source set intersects sourceOrderIDs, skipping excludeBillingID
	// so an edited record never counts its own previous payment.
	PriorPaid(ctx context.Context, billingType BillingType, sourceOrderIDs []string, excludeBillingID string) (decimal.Decimal, error)
}

// BillingService orchestrates the billing record lifecycle: validation,
// invoice minting, money computation, ledger aggregation, persistence, and
// best-effort status propagation to source orders.
type BillingService interface {
	Create(ctx context.Context, cmd CreateBillingCommand) (BillingResult, error)
	Get(ctx context.Context, billingID string) (BillingRecord, error)
	List(ctx context.Context, filter BillingListFilter) (domain.CursorPage[BillingRecord], error)
	Update(ctx context.Context, cmd UpdateBillingCommand) (BillingResult, error)
	Delete(ctx context.Context, billingID string) error
}

// CreateBillingCommand carries the client inputs for a new billing record.
type CreateBillingCommand struct {
	Type           BillingType
	CustomerRef    string
	SourceOrderIDs []string
	PaidAmount     decimal.Decimal
	Discount       decimal.Decimal
	Tax            decimal.Decimal
	Date           time.Time
}

// UpdateBillingCommand carries the client inputs for editing an existing
// billing record. The source list replaces the stored one wholesale; nil
// amount and date fields keep the stored values.
type UpdateBillingCommand struct {
	BillingID      string
	Type           BillingType
	CustomerRef    string
	SourceOrderIDs []string
	PaidAmount     *decimal.Decimal
	Discount       *decimal.Decimal
	Tax            *decimal.Decimal
	Date           *time.Time
}

// BillingResult pairs the persisted record with non-fatal warnings collected
// during propagation.
type BillingResult struct {
	Record   BillingRecord
	Warnings []string
}

// BillingListFilter controls filtering and paging for billing listings.
type BillingListFilter struct {
	CustomerRef   string
	SourceOrderID string
	Status        []string
	DateFrom      *time.Time
	DateTo        *time.Time
	Pagination    Pagination
}

// OrderService creates and reads order identity records together with the
// chargeable source order each one backs.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (OrderCreation, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
}

// CreateOrderCommand carries the inputs for a new order and its source order.
// Exactly one of Service or POS must be set, matching Kind.
type CreateOrderCommand struct {
	Kind        OrderKind
	CustomerRef string
	Date        time.Time
	Service     *ServiceOrderInput
	POS         *POSOrderInput
}

// ServiceOrderInput describes the chargeable work behind a service or
// installation order.
type ServiceOrderInput struct {
	ServiceRef string
	Discount   decimal.Decimal
	Remarks    string
}

// POSLineInput is one requested product line on a point-of-sale order.
type POSLineInput struct {
	ProductRef string
	Quantity   int
}

// POSOrderInput describes the basket behind a point-of-sale order.
type POSOrderInput struct {
	Items    []POSLineInput
	Discount decimal.Decimal
}

// OrderCreation reports the minted identity and the source order it backs.
type OrderCreation struct {
	Order         Order
	SourceOrderID string
}

// OrderListFilter controls filtering and paging for order listings.
type OrderListFilter struct {
	CustomerRef string
	Kind        []string
	DateFrom    *time.Time
	DateTo      *time.Time
	Pagination  Pagination
}

// CustomerService reads the customer directory.
type CustomerService interface {
	Get(ctx context.Context, customerID string) (Customer, error)
	List(ctx context.Context, pager Pagination) (domain.CursorPage[Customer], error)
}

// SystemService surfaces dependency health for liveness and readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// BillingEventMessage is the payload published for billing lifecycle events.
type BillingEventMessage struct {
	EventType   string
	BillingID   string
	Invoice     string
	BillingType string
	CustomerID  string
	Status      string
	OccurredAt  time.Time
}

// BillingEventPublisher emits billing lifecycle events to interested
// consumers. Publishing is best-effort; failures never roll back writes.
type BillingEventPublisher interface {
	PublishBillingEvent(ctx context.Context, message BillingEventMessage) (string, error)
}

// Billing event types emitted by the billing service.
const (
	BillingEventCreated           = "billing.created"
	BillingEventUpdated           = "billing.updated"
	BillingEventDeleted           = "billing.deleted"
	BillingEventPropagationFailed = "billing.propagation.failed"
)
