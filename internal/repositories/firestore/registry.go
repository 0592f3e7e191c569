package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	pfirestore "github.com/bizledger/api/internal/platform/firestore"
	"github.com/bizledger/api/internal/repositories"
)

// Registry bundles the Firestore-backed repository implementations behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	serviceOrders *ServiceOrderRepository
	posOrders     *POSOrderRepository
	billing       *BillingRepository
	counters      *CounterRepository
	customers     *CustomerRepository
	catalog       *CatalogRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires all Firestore repositories against the shared provider.
func NewRegistry(provider *pfirestore.Provider, environment string, startedAt time.Time) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	serviceOrders, err := NewServiceOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	posOrders, err := NewPOSOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	billing, err := NewBillingRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	health, err := repositories.NewDependencyHealthRepository(environment, startedAt, []repositories.DependencyProbe{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				client, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				// A single-document read is the cheapest end-to-end probe.
				iter := client.Collection(countersCollection).Limit(1).Documents(ctx)
				defer iter.Stop()
				if _, err := iter.Next(); err != nil && !isIteratorDone(err) {
					return err
				}
				return nil
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	return &Registry{
		provider:      provider,
		orders:        orders,
		serviceOrders: serviceOrders,
		posOrders:     posOrders,
		billing:       billing,
		counters:      counters,
		customers:     customers,
		catalog:       catalog,
		health:        health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order identity repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// ServiceOrders returns the service order repository.
func (r *Registry) ServiceOrders() repositories.ServiceOrderRepository { return r.serviceOrders }

// POSOrders returns the POS order repository.
func (r *Registry) POSOrders() repositories.POSOrderRepository { return r.posOrders }

// Billing returns the billing record repository.
func (r *Registry) Billing() repositories.BillingRepository { return r.billing }

// Counters returns the sequence counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Customers returns the customer directory repository.
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

// Catalog returns the catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

func isIteratorDone(err error) bool {
	return errors.Is(err, iterator.Done)
}
