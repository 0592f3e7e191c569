package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/bizledger/api/internal/domain"
)

type orderFixture struct {
	svc           OrderService
	orders        *stubOrderRepository
	serviceOrders *stubServiceOrderRepository
	posOrders     *stubPOSOrderRepository
	catalog       *stubCatalogRepository
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	fixture := &orderFixture{
		orders:        newStubOrderRepository(),
		serviceOrders: newStubServiceOrderRepository(),
		posOrders:     newStubPOSOrderRepository(),
		catalog:       newStubCatalogRepository(),
	}
	fixture.catalog.services["svc-1"] = domain.CatalogService{ID: "svc-1", Title: "AC repair", Charge: dec("1000")}
	fixture.catalog.products["prod-1"] = domain.CatalogProduct{ID: "prod-1", Title: "Cable", Price: dec("15")}
	fixture.catalog.products["prod-2"] = domain.CatalogProduct{ID: "prod-2", Title: "Switch", Price: dec("70")}

	identity := newIdentityService(t, fixture.orders)

	var idSeq int
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:        fixture.orders,
		ServiceOrders: fixture.serviceOrders,
		POSOrders:     fixture.posOrders,
		Customers:     newStubCustomerRepository(domain.Customer{ID: "cust-1", Name: "Acme Traders"}),
		Catalog:       fixture.catalog,
		Identity:      identity,
		Clock:         func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string {
			idSeq++
			return fmt.Sprintf("fixed%04d", idSeq)
		},
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func TestCreateServiceOrderSnapshotsCatalogCharge(t *testing.T) {
	fixture := newOrderFixture(t)

	creation, err := fixture.svc.Create(context.Background(), CreateOrderCommand{
		Kind:        domain.OrderKindService,
		CustomerRef: "cust-1",
		Service:     &ServiceOrderInput{ServiceRef: "svc-1", Discount: dec("10"), Remarks: "weekend visit"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if creation.Order.OrderNumber != "SRV00001" {
		t.Fatalf("expected SRV00001, got %s", creation.Order.OrderNumber)
	}
	source, ok := fixture.serviceOrders.orders[creation.SourceOrderID]
	if !ok {
		t.Fatalf("expected source order persisted under %s", creation.SourceOrderID)
	}
	if source.OrderRef != creation.Order.ID || source.OrderNumber != creation.Order.OrderNumber {
		t.Fatalf("expected source linked to identity, got %+v", source)
	}
	if source.ServiceTitle != "AC repair" {
		t.Fatalf("expected catalog title snapshot, got %q", source.ServiceTitle)
	}
	assertDecimal(t, "charge", source.ServiceCharge, "1000")
	if source.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("expected new source unpaid, got %s", source.PaymentStatus)
	}
}

func TestCreatePOSOrderComputesLineTotals(t *testing.T) {
	fixture := newOrderFixture(t)

	creation, err := fixture.svc.Create(context.Background(), CreateOrderCommand{
		Kind:        domain.OrderKindPOS,
		CustomerRef: "cust-1",
		POS: &POSOrderInput{
			Items: []POSLineInput{
				{ProductRef: "prod-1", Quantity: 2},
				{ProductRef: "prod-2", Quantity: 1},
			},
			Discount: dec("0"),
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if creation.Order.OrderNumber != "POS00001" {
		t.Fatalf("expected POS00001, got %s", creation.Order.OrderNumber)
	}
	source := fixture.posOrders.orders[creation.SourceOrderID]
	if len(source.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(source.Items))
	}
	assertDecimal(t, "line total", source.Items[0].Total, "30")
	assertDecimal(t, "totalPrice", source.TotalPrice, "100")
}

func TestCreateOrderValidation(t *testing.T) {
	fixture := newOrderFixture(t)

	cases := []struct {
		name     string
		cmd      CreateOrderCommand
		expected error
	}{
		{
			name:     "unknown kind",
			cmd:      CreateOrderCommand{Kind: "warranty", CustomerRef: "cust-1"},
			expected: ErrOrderInvalidKind,
		},
		{
			name:     "service order without details",
			cmd:      CreateOrderCommand{Kind: domain.OrderKindService, CustomerRef: "cust-1"},
			expected: ErrOrderInvalidInput,
		},
		{
			name: "pos order with service details",
			cmd: CreateOrderCommand{
				Kind:        domain.OrderKindPOS,
				CustomerRef: "cust-1",
				Service:     &ServiceOrderInput{ServiceRef: "svc-1"},
				POS:         &POSOrderInput{Items: []POSLineInput{{ProductRef: "prod-1", Quantity: 1}}},
			},
			expected: ErrOrderInvalidInput,
		},
		{
			name: "zero quantity",
			cmd: CreateOrderCommand{
				Kind:        domain.OrderKindPOS,
				CustomerRef: "cust-1",
				POS:         &POSOrderInput{Items: []POSLineInput{{ProductRef: "prod-1", Quantity: 0}}},
			},
			expected: ErrOrderInvalidInput,
		},
		{
			name: "blank customer",
			cmd: CreateOrderCommand{
				Kind:    domain.OrderKindService,
				Service: &ServiceOrderInput{ServiceRef: "svc-1"},
			},
			expected: ErrOrderInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fixture.svc.Create(context.Background(), tc.cmd); !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
		})
	}
	if fixture.orders.inserts != 0 {
		t.Fatalf("expected no identity inserts on validation failure, got %d", fixture.orders.inserts)
	}
}

func TestCreateOrderUnknownCatalogEntry(t *testing.T) {
	fixture := newOrderFixture(t)

	_, err := fixture.svc.Create(context.Background(), CreateOrderCommand{
		Kind:        domain.OrderKindService,
		CustomerRef: "cust-1",
		Service:     &ServiceOrderInput{ServiceRef: "svc-missing"},
	})
	if !errors.Is(err, ErrOrderCatalogNotFound) {
		t.Fatalf("expected ErrOrderCatalogNotFound, got %v", err)
	}
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	fixture := newOrderFixture(t)

	_, err := fixture.svc.Create(context.Background(), CreateOrderCommand{
		Kind:        domain.OrderKindService,
		CustomerRef: "cust-missing",
		Service:     &ServiceOrderInput{ServiceRef: "svc-1"},
	})
	if !errors.Is(err, ErrOrderCustomerNotFound) {
		t.Fatalf("expected ErrOrderCustomerNotFound, got %v", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	fixture := newOrderFixture(t)
	if _, err := fixture.svc.Get(context.Background(), "SRV99999"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
