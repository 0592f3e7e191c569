package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderKind enumerates the business transaction types an order can represent.
type OrderKind string

const (
	// OrderKindService marks orders backing service work.
	OrderKindService OrderKind = "service"
	// OrderKindInstallation marks orders backing installation work.
	OrderKindInstallation OrderKind = "installation"
	// OrderKindPOS marks orders created at the point of sale.
	OrderKindPOS OrderKind = "pos"
)

// BillingType discriminates which source-order collection a billing record settles.
type BillingType string

const (
	// BillingTypeService bills service orders.
	BillingTypeService BillingType = "service"
	// BillingTypePOS bills point-of-sale orders.
	BillingTypePOS BillingType = "pos"
)

// PaymentStatus describes how much of a balance has been settled.
type PaymentStatus string

const (
	// PaymentStatusUnpaid indicates nothing has been paid.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPartial indicates a payment below the final total.
	PaymentStatusPartial PaymentStatus = "partial"
	// PaymentStatusPaid indicates the final total has been covered.
	PaymentStatusPaid PaymentStatus = "paid"
)

// DerivePaymentStatus computes the payment status from cumulative payments
// against the final total. Backward transitions are allowed; the status is
// always recomputed from the ledger, never carried forward.
func DerivePaymentStatus(totalPaid, finalTotal decimal.Decimal) PaymentStatus {
	switch {
	case totalPaid.GreaterThanOrEqual(finalTotal) && totalPaid.IsPositive():
		return PaymentStatusPaid
	case totalPaid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}

// Order is the immutable identity record minted once per business transaction.
type Order struct {
	ID          string
	OrderNumber string
	CustomerRef string
	Kind        OrderKind
	Date        time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ServiceOrder is a chargeable unit of service/installation work.
type ServiceOrder struct {
	ID            string
	OrderRef      string
	OrderNumber   string
	CustomerRef   string
	ServiceRef    string
	ServiceTitle  string
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
	PaymentStatus PaymentStatus
	Remarks       string
	Date          time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// POSLineItem is a single product line on a point-of-sale order.
type POSLineItem struct {
	ProductRef string
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
}

// POSOrder is a chargeable basket of goods sold at the point of sale.
type POSOrder struct {
	ID            string
	OrderRef      string
	OrderNumber   string
	CustomerRef   string
	Items         []POSLineItem
	TotalPrice    decimal.Decimal
	Discount      decimal.Decimal
	PaymentStatus PaymentStatus
	Date          time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BillingSource links a billing record to one source order and its identity order.
type BillingSource struct {
	SourceOrderRef string
	OrderNumber    string
	OrderRef       string
}

// BillingRecord captures one billing event: the sources it settles, the money
// pipeline outputs, and the derived payment status. TotalPaid is cumulative
// across every billing event touching the same sources; PaidAmount is this
// event's contribution only.
type BillingRecord struct {
	ID             string
	Invoice        string
	Date           time.Time
	CustomerRef    string
	Type           BillingType
	Sources        []BillingSource
	SourceOrderIDs []string
	PaidAmount     decimal.Decimal
	TotalPaid      decimal.Decimal
	TotalAmount    decimal.Decimal
	Discount       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	Tax            decimal.Decimal
	TaxAmount      decimal.Decimal
	FinalTotal     decimal.Decimal
	Status         PaymentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Customer is the read-only directory projection used for display.
type Customer struct {
	ID      string
	Name    string
	PhoneNo string
	Address string
}

// CatalogService is a read-only catalog entry for service work.
type CatalogService struct {
	ID     string
	Title  string
	Charge decimal.Decimal
}

// CatalogProduct is a read-only catalog entry for goods.
type CatalogProduct struct {
	ID    string
	Title string
	Price decimal.Decimal
}

// SourceOrderView is a resolved source order with display metadata expanded,
// carrying exactly what the money pipeline and billing persistence need.
type SourceOrderView struct {
	ID            string
	OrderRef      string
	OrderNumber   string
	CustomerRef   string
	CustomerName  string
	Title         string
	Charge        decimal.Decimal
	Discount      decimal.Decimal
	PaymentStatus PaymentStatus
}

// SystemHealthReport summarises dependency health for readiness probes.
type SystemHealthReport struct {
	Healthy     bool
	Environment string
	StartedAt   time.Time
	CheckedAt   time.Time
	Components  map[string]string
}
