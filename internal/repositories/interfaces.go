package repositories

import (
	"context"
	"time"

	domain "github.com/bizledger/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	ServiceOrders() ServiceOrderRepository
	POSOrders() POSOrderRepository
	Billing() BillingRepository
	Counters() CounterRepository
	Customers() CustomerRepository
	Catalog() CatalogRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order identity records. Insert must fail with a
// conflict when the order number is already taken; the identity service relies
// on that to detect collisions and retry.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter controls filtering and paging for order listings.
type OrderListFilter struct {
	CustomerRef string
	Kind        []string
	DateRange   domain.RangeQuery[time.Time]
	Pagination  domain.Pagination
}

// ServiceOrderRepository persists service/installation source orders.
type ServiceOrderRepository interface {
	Insert(ctx context.Context, order domain.ServiceOrder) error
	FindByID(ctx context.Context, id string) (domain.ServiceOrder, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.ServiceOrder, error)
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, updatedAt time.Time) error
}

// POSOrderRepository persists point-of-sale source orders.
type POSOrderRepository interface {
	Insert(ctx context.Context, order domain.POSOrder) error
	FindByID(ctx context.Context, id string) (domain.POSOrder, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.POSOrder, error)
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, updatedAt time.Time) error
}

// BillingListFilter controls filtering and paging for billing listings.
type BillingListFilter struct {
	CustomerRef   string
	SourceOrderID string
	Status        []string
	DateRange     domain.RangeQuery[time.Time]
	Pagination    domain.Pagination
}

// BillingRepository persists billing records. ListBySourceOrders returns every
// record whose source-order set intersects the given ids, across the full
// billing history; it is the read feeding the payment ledger aggregation.
type BillingRepository interface {
	Insert(ctx context.Context, record domain.BillingRecord) error
	Update(ctx context.Context, record domain.BillingRecord) error
	FindByID(ctx context.Context, billingID string) (domain.BillingRecord, error)
	Delete(ctx context.Context, billingID string) error
	List(ctx context.Context, filter BillingListFilter) (domain.CursorPage[domain.BillingRecord], error)
	ListBySourceOrders(ctx context.Context, billingType domain.BillingType, sourceOrderIDs []string) ([]domain.BillingRecord, error)
}

// CounterRepository provides transaction-safe sequence numbers. Next performs
// a single atomic increment-and-fetch; allocated values are never reused.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// CustomerRepository reads the customer directory. The core never mutates it.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Customer], error)
}

// CatalogRepository reads service and product catalog entries for display.
type CatalogRepository interface {
	FindService(ctx context.Context, serviceID string) (domain.CatalogService, error)
	FindProduct(ctx context.Context, productID string) (domain.CatalogProduct, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
