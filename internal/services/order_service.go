package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/bizledger/api/internal/domain"
	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrOrderCustomerNotFound indicates the referenced customer does not exist.
	ErrOrderCustomerNotFound = errors.New("orders: customer not found")
	// ErrOrderCatalogNotFound indicates a referenced catalog entry does not exist.
	ErrOrderCatalogNotFound = errors.New("orders: catalog entry not found")
)

// OrderServiceDeps bundles collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	ServiceOrders repositories.ServiceOrderRepository
	POSOrders     repositories.POSOrderRepository
	Customers     repositories.CustomerRepository
	Catalog       repositories.CatalogRepository
	Identity      OrderIdentityService
	Clock         func() time.Time
	IDGenerator   func() string
}

type orderService struct {
	orders        repositories.OrderRepository
	serviceOrders repositories.ServiceOrderRepository
	posOrders     repositories.POSOrderRepository
	customers     repositories.CustomerRepository
	catalog       repositories.CatalogRepository
	identity      OrderIdentityService
	clock         func() time.Time
	newID         func() string
}

var _ OrderService = (*orderService)(nil)

// NewOrderService assembles the order creation and read service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.ServiceOrders == nil {
		return nil, errors.New("order service: service order repository is required")
	}
	if deps.POSOrders == nil {
		return nil, errors.New("order service: pos order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("order service: identity service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	return &orderService{
		orders:        deps.Orders,
		serviceOrders: deps.ServiceOrders,
		posOrders:     deps.POSOrders,
		customers:     deps.Customers,
		catalog:       deps.Catalog,
		identity:      deps.Identity,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: newID,
	}, nil
}

// Create mints the order identity and stores the chargeable source order it
// backs. The identity write lands first; a failed source write leaves the
// identity in place since minted numbers are never reclaimed.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (OrderCreation, error) {
	if err := validateCreateOrder(cmd); err != nil {
		return OrderCreation{}, err
	}
	if s.customers != nil {
		if _, err := s.customers.FindByID(ctx, cmd.CustomerRef); err != nil {
			if isRepositoryNotFound(err) {
				return OrderCreation{}, fmt.Errorf("%w: %s", ErrOrderCustomerNotFound, cmd.CustomerRef)
			}
			return OrderCreation{}, classifyRepositoryError(err, nil, nil)
		}
	}

	order, err := s.identity.Mint(ctx, MintOrderCommand{
		Kind:        cmd.Kind,
		CustomerRef: cmd.CustomerRef,
		Date:        cmd.Date,
	})
	if err != nil {
		return OrderCreation{}, err
	}

	var sourceID string
	if cmd.Kind == domain.OrderKindPOS {
		sourceID, err = s.createPOSOrder(ctx, order, *cmd.POS)
	} else {
		sourceID, err = s.createServiceOrder(ctx, order, *cmd.Service)
	}
	if err != nil {
		return OrderCreation{}, err
	}

	return OrderCreation{Order: order, SourceOrderID: sourceID}, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, classifyRepositoryError(err, ErrOrderNotFound, nil)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	repoFilter := repositories.OrderListFilter{
		CustomerRef: strings.TrimSpace(filter.CustomerRef),
		Kind:        filter.Kind,
		DateRange:   domain.RangeQuery[time.Time]{From: filter.DateFrom, To: filter.DateTo},
		Pagination:  filter.Pagination,
	}
	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, classifyRepositoryError(err, nil, nil)
	}
	return page, nil
}

func (s *orderService) createServiceOrder(ctx context.Context, order Order, input ServiceOrderInput) (string, error) {
	service, err := s.catalog.FindService(ctx, input.ServiceRef)
	if err != nil {
		if isRepositoryNotFound(err) {
			return "", fmt.Errorf("%w: service %s", ErrOrderCatalogNotFound, input.ServiceRef)
		}
		return "", classifyRepositoryError(err, nil, nil)
	}

	now := s.clock()
	sourceID := "so_" + s.newID()
	record := domain.ServiceOrder{
		ID:            sourceID,
		OrderRef:      order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerRef:   order.CustomerRef,
		ServiceRef:    service.ID,
		ServiceTitle:  service.Title,
		ServiceCharge: service.Charge,
		Discount:      input.Discount,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Remarks:       strings.TrimSpace(input.Remarks),
		Date:          order.Date,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.serviceOrders.Insert(ctx, record); err != nil {
		return "", classifyRepositoryError(err, nil, nil)
	}
	return sourceID, nil
}

func (s *orderService) createPOSOrder(ctx context.Context, order Order, input POSOrderInput) (string, error) {
	items := make([]domain.POSLineItem, 0, len(input.Items))
	totalPrice := decimal.Zero
	for _, line := range input.Items {
		product, err := s.catalog.FindProduct(ctx, line.ProductRef)
		if err != nil {
			if isRepositoryNotFound(err) {
				return "", fmt.Errorf("%w: product %s", ErrOrderCatalogNotFound, line.ProductRef)
			}
			return "", classifyRepositoryError(err, nil, nil)
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, domain.POSLineItem{
			ProductRef: product.ID,
			Title:      product.Title,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			Total:      lineTotal,
		})
		totalPrice = totalPrice.Add(lineTotal)
	}

	now := s.clock()
	sourceID := "pos_" + s.newID()
	record := domain.POSOrder{
		ID:            sourceID,
		OrderRef:      order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerRef:   order.CustomerRef,
		Items:         items,
		TotalPrice:    totalPrice,
		Discount:      input.Discount,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Date:          order.Date,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.posOrders.Insert(ctx, record); err != nil {
		return "", classifyRepositoryError(err, nil, nil)
	}
	return sourceID, nil
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	switch cmd.Kind {
	case domain.OrderKindService, domain.OrderKindInstallation:
		if cmd.Service == nil {
			return fmt.Errorf("%w: service details are required for %s orders", ErrOrderInvalidInput, cmd.Kind)
		}
		if cmd.POS != nil {
			return fmt.Errorf("%w: pos details not allowed for %s orders", ErrOrderInvalidInput, cmd.Kind)
		}
		if strings.TrimSpace(cmd.Service.ServiceRef) == "" {
			return fmt.Errorf("%w: service reference is required", ErrOrderInvalidInput)
		}
		if err := validatePercent("discount", cmd.Service.Discount); err != nil {
			return fmt.Errorf("%w: discount percentage must be between 0 and 100", ErrOrderInvalidInput)
		}
	case domain.OrderKindPOS:
		if cmd.POS == nil {
			return fmt.Errorf("%w: pos details are required for pos orders", ErrOrderInvalidInput)
		}
		if cmd.Service != nil {
			return fmt.Errorf("%w: service details not allowed for pos orders", ErrOrderInvalidInput)
		}
		if len(cmd.POS.Items) == 0 {
			return fmt.Errorf("%w: at least one line item is required", ErrOrderInvalidInput)
		}
		for _, line := range cmd.POS.Items {
			if strings.TrimSpace(line.ProductRef) == "" {
				return fmt.Errorf("%w: product reference is required", ErrOrderInvalidInput)
			}
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive", ErrOrderInvalidInput)
			}
		}
		if err := validatePercent("discount", cmd.POS.Discount); err != nil {
			return fmt.Errorf("%w: discount percentage must be between 0 and 100", ErrOrderInvalidInput)
		}
	default:
		return fmt.Errorf("%w: %q", ErrOrderInvalidKind, string(cmd.Kind))
	}
	if strings.TrimSpace(cmd.CustomerRef) == "" {
		return fmt.Errorf("%w: customer reference is required", ErrOrderInvalidInput)
	}
	return nil
}
