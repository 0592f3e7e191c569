package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/bizledger/api/internal/domain"
	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrSourceInvalidInput indicates the source list or billing type is malformed.
	ErrSourceInvalidInput = errors.New("source resolver: invalid input")
	// ErrSourceNotFound indicates a referenced source order does not exist.
	ErrSourceNotFound = errors.New("source resolver: source order not found")
)

// SourceResolverDeps bundles collaborators required to construct a source resolver.
type SourceResolverDeps struct {
	ServiceOrders repositories.ServiceOrderRepository
	POSOrders     repositories.POSOrderRepository
	Customers     repositories.CustomerRepository
	Catalog       repositories.CatalogRepository
}

type sourceResolver struct {
	serviceOrders repositories.ServiceOrderRepository
	posOrders     repositories.POSOrderRepository
	customers     repositories.CustomerRepository
	catalog       repositories.CatalogRepository
}

var _ SourceResolver = (*sourceResolver)(nil)

// NewSourceResolver constructs the billing-type-dispatched source loader.
func NewSourceResolver(deps SourceResolverDeps) (SourceResolver, error) {
	if deps.ServiceOrders == nil {
		return nil, errors.New("source resolver: service order repository is required")
	}
	if deps.POSOrders == nil {
		return nil, errors.New("source resolver: pos order repository is required")
	}
	return &sourceResolver{
		serviceOrders: deps.ServiceOrders,
		posOrders:     deps.POSOrders,
		customers:     deps.Customers,
		catalog:       deps.Catalog,
	}, nil
}

// Resolve loads every referenced source order for the given billing type and
// expands customer and catalog display metadata. The first missing ID aborts
// the whole resolution. Mixed-type ID lists are not supported; IDs belonging
// to the other collection simply fail as not found.
func (r *sourceResolver) Resolve(ctx context.Context, billingType BillingType, sourceOrderIDs []string) ([]SourceOrderView, error) {
	ids, err := normaliseSourceIDs(sourceOrderIDs)
	if err != nil {
		return nil, err
	}

	switch billingType {
	case domain.BillingTypeService:
		return r.resolveServiceOrders(ctx, ids)
	case domain.BillingTypePOS:
		return r.resolvePOSOrders(ctx, ids)
	default:
		return nil, fmt.Errorf("%w: unknown billing type %q", ErrSourceInvalidInput, string(billingType))
	}
}

func (r *sourceResolver) resolveServiceOrders(ctx context.Context, ids []string) ([]SourceOrderView, error) {
	orders, err := r.serviceOrders.FindByIDs(ctx, ids)
	if err != nil {
		return nil, classifyRepositoryError(err, ErrSourceNotFound, nil)
	}

	names := newCustomerNameCache(r.customers)
	views := make([]SourceOrderView, 0, len(orders))
	for _, order := range orders {
		title := order.ServiceTitle
		if title == "" && r.catalog != nil && order.ServiceRef != "" {
			if svc, err := r.catalog.FindService(ctx, order.ServiceRef); err == nil {
				title = svc.Title
			}
		}
		views = append(views, SourceOrderView{
			ID:            order.ID,
			OrderRef:      order.OrderRef,
			OrderNumber:   order.OrderNumber,
			CustomerRef:   order.CustomerRef,
			CustomerName:  names.lookup(ctx, order.CustomerRef),
			Title:         title,
			Charge:        order.ServiceCharge,
			Discount:      order.Discount,
			PaymentStatus: order.PaymentStatus,
		})
	}
	return views, nil
}

func (r *sourceResolver) resolvePOSOrders(ctx context.Context, ids []string) ([]SourceOrderView, error) {
	orders, err := r.posOrders.FindByIDs(ctx, ids)
	if err != nil {
		return nil, classifyRepositoryError(err, ErrSourceNotFound, nil)
	}

	names := newCustomerNameCache(r.customers)
	views := make([]SourceOrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, SourceOrderView{
			ID:            order.ID,
			OrderRef:      order.OrderRef,
			OrderNumber:   order.OrderNumber,
			CustomerRef:   order.CustomerRef,
			CustomerName:  names.lookup(ctx, order.CustomerRef),
			Title:         posOrderTitle(order),
			Charge:        order.TotalPrice,
			Discount:      order.Discount,
			PaymentStatus: order.PaymentStatus,
		})
	}
	return views, nil
}

func normaliseSourceIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one source order id is required", ErrSourceInvalidInput)
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: source order id must not be empty", ErrSourceInvalidInput)
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out, nil
}

func posOrderTitle(order domain.POSOrder) string {
	switch len(order.Items) {
	case 0:
		return ""
	case 1:
		return order.Items[0].Title
	default:
		return fmt.Sprintf("%s +%d more", order.Items[0].Title, len(order.Items)-1)
	}
}

// customerNameCache keeps directory lookups to one per distinct customer ref.
// Display names are decorative; lookup failures leave the name blank rather
// than failing resolution.
type customerNameCache struct {
	repo  repositories.CustomerRepository
	names map[string]string
}

func newCustomerNameCache(repo repositories.CustomerRepository) *customerNameCache {
	return &customerNameCache{repo: repo, names: make(map[string]string)}
}

func (c *customerNameCache) lookup(ctx context.Context, customerRef string) string {
	if c.repo == nil || customerRef == "" {
		return ""
	}
	if name, ok := c.names[customerRef]; ok {
		return name
	}
	name := ""
	if customer, err := c.repo.FindByID(ctx, customerRef); err == nil {
		name = customer.Name
	}
	c.names[customerRef] = name
	return name
}
