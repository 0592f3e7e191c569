package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizledger/api/internal/platform/config"
	"github.com/bizledger/api/internal/repositories"
	"github.com/bizledger/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Sequences services.SequenceService
	Identity  services.OrderIdentityService
	Resolver  services.SourceResolver
	Ledger    services.PaymentLedgerAggregator
	Billing   services.BillingService
	Orders    services.OrderService
	Customers services.CustomerService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	events services.BillingEventPublisher
	clock  func() time.Time
}

// WithBillingEventPublisher attaches the publisher used for billing lifecycle events.
// When omitted, billing writes succeed without emitting events.
func WithBillingEventPublisher(publisher services.BillingEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = publisher
	}
}

// WithClock overrides the time source, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring supplies the
// Firestore-backed registry, while tests can provide in-memory implementations.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, options containerOptions) (Services, error) {
	var svc Services

	sequences, err := services.NewSequenceService(services.SequenceServiceDeps{
		Repository:  reg.Counters(),
		InvoiceStep: int64(cfg.Sequences.InvoiceStep),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build sequence service: %w", err)
	}
	svc.Sequences = sequences

	identity, err := services.NewOrderIdentityService(services.OrderIdentityServiceDeps{
		Orders:    reg.Orders(),
		Sequences: sequences,
		Clock:     options.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order identity service: %w", err)
	}
	svc.Identity = identity

	resolver, err := services.NewSourceResolver(services.SourceResolverDeps{
		ServiceOrders: reg.ServiceOrders(),
		POSOrders:     reg.POSOrders(),
		Customers:     reg.Customers(),
		Catalog:       reg.Catalog(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build source resolver: %w", err)
	}
	svc.Resolver = resolver

	ledger, err := services.NewPaymentLedgerAggregator(services.PaymentLedgerDeps{
		Billing: reg.Billing(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment ledger: %w", err)
	}
	svc.Ledger = ledger

	billing, err := services.NewBillingService(services.BillingServiceDeps{
		Billing:       reg.Billing(),
		ServiceOrders: reg.ServiceOrders(),
		POSOrders:     reg.POSOrders(),
		Customers:     reg.Customers(),
		Resolver:      resolver,
		Ledger:        ledger,
		Money:         services.NewMoneyEngine(),
		Sequences:     sequences,
		Events:        options.events,
		Clock:         options.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build billing service: %w", err)
	}
	svc.Billing = billing

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		ServiceOrders: reg.ServiceOrders(),
		POSOrders:     reg.POSOrders(),
		Customers:     reg.Customers(),
		Catalog:       reg.Catalog(),
		Identity:      identity,
		Clock:         options.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	customers, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers: reg.Customers(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build customer service: %w", err)
	}
	svc.Customers = customers

	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            options.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	return svc, nil
}
