package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bizledger/api/internal/domain"
	pfirestore "github.com/bizledger/api/internal/platform/firestore"
	"github.com/bizledger/api/internal/repositories"
)

const serviceOrdersCollection = "serviceorders"

type serviceOrderDocument struct {
	OrderRef      string    `firestore:"orderRef"`
	OrderNumber   string    `firestore:"orderNumber"`
	CustomerRef   string    `firestore:"customerRef"`
	ServiceRef    string    `firestore:"serviceRef"`
	ServiceTitle  string    `firestore:"serviceTitle"`
	ServiceCharge string    `firestore:"serviceCharge"`
	Discount      string    `firestore:"discount"`
	PaymentStatus string    `firestore:"paymentStatus"`
	Remarks       string    `firestore:"remarks,omitempty"`
	Date          time.Time `firestore:"date"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

// ServiceOrderRepository persists service and installation source orders.
type ServiceOrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[serviceOrderDocument]
}

var _ repositories.ServiceOrderRepository = (*ServiceOrderRepository)(nil)

// NewServiceOrderRepository constructs a Firestore-backed service order repository.
func NewServiceOrderRepository(provider *pfirestore.Provider) (*ServiceOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("service order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[serviceOrderDocument](provider, serviceOrdersCollection, nil, nil)
	return &ServiceOrderRepository{provider: provider, base: base}, nil
}

// Insert stores a new service order document.
func (r *ServiceOrderRepository) Insert(ctx context.Context, order domain.ServiceOrder) error {
	if r == nil || r.base == nil {
		return errors.New("service order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("service order repository: id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainServiceOrder(order)); err != nil {
		return pfirestore.WrapError("serviceorders.insert", err)
	}
	return nil
}

// FindByID loads a single service order.
func (r *ServiceOrderRepository) FindByID(ctx context.Context, id string) (domain.ServiceOrder, error) {
	if r == nil || r.base == nil {
		return domain.ServiceOrder{}, errors.New("service order repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return domain.ServiceOrder{}, errors.New("service order repository: id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	return toDomainServiceOrder(doc.ID, doc.Data)
}

// FindByIDs resolves the given service orders, preserving input order. A
// missing ID surfaces as a not-found error naming the offender.
func (r *ServiceOrderRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.ServiceOrder, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("service order repository not initialised")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return nil, errors.New("service order repository: id is required")
		}
		refs = append(refs, client.Collection(serviceOrdersCollection).Doc(trimmed))
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("serviceorders.findByIds", err)
	}

	orders := make([]domain.ServiceOrder, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			return nil, pfirestore.WrapError("serviceorders.findByIds",
				notFoundError(fmt.Sprintf("service order %s not found", snap.Ref.ID)))
		}
		var doc serviceOrderDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode service order %s: %w", snap.Ref.ID, err)
		}
		order, err := toDomainServiceOrder(snap.Ref.ID, doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdatePaymentStatus overwrites only the payment status and update timestamp.
func (r *ServiceOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, updatedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("service order repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("service order repository: id is required")
	}

	_, err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "paymentStatus", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
	return err
}

func fromDomainServiceOrder(order domain.ServiceOrder) serviceOrderDocument {
	return serviceOrderDocument{
		OrderRef:      strings.TrimSpace(order.OrderRef),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		CustomerRef:   strings.TrimSpace(order.CustomerRef),
		ServiceRef:    strings.TrimSpace(order.ServiceRef),
		ServiceTitle:  strings.TrimSpace(order.ServiceTitle),
		ServiceCharge: encodeAmount(order.ServiceCharge),
		Discount:      encodeAmount(order.Discount),
		PaymentStatus: string(order.PaymentStatus),
		Remarks:       strings.TrimSpace(order.Remarks),
		Date:          order.Date.UTC(),
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
}

func toDomainServiceOrder(id string, doc serviceOrderDocument) (domain.ServiceOrder, error) {
	charge, err := decodeAmount(doc.ServiceCharge)
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	discount, err := decodeAmount(doc.Discount)
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	return domain.ServiceOrder{
		ID:            id,
		OrderRef:      doc.OrderRef,
		OrderNumber:   doc.OrderNumber,
		CustomerRef:   doc.CustomerRef,
		ServiceRef:    doc.ServiceRef,
		ServiceTitle:  doc.ServiceTitle,
		ServiceCharge: charge,
		Discount:      discount,
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		Remarks:       doc.Remarks,
		Date:          doc.Date,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}
