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

const posOrdersCollection = "posorders"

type posLineItemDocument struct {
	ProductRef string `firestore:"productRef"`
	Title      string `firestore:"title"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  string `firestore:"unitPrice"`
	Total      string `firestore:"total"`
}

type posOrderDocument struct {
	OrderRef      string                `firestore:"orderRef"`
	OrderNumber   string                `firestore:"orderNumber"`
	CustomerRef   string                `firestore:"customerRef"`
	Items         []posLineItemDocument `firestore:"items"`
	TotalPrice    string                `firestore:"totalPrice"`
	Discount      string                `firestore:"discount"`
	PaymentStatus string                `firestore:"paymentStatus"`
	Date          time.Time             `firestore:"date"`
	CreatedAt     time.Time             `firestore:"createdAt"`
	UpdatedAt     time.Time             `firestore:"updatedAt"`
}

// POSOrderRepository persists point-of-sale source orders.
type POSOrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[posOrderDocument]
}

var _ repositories.POSOrderRepository = (*POSOrderRepository)(nil)

// NewPOSOrderRepository constructs a Firestore-backed POS order repository.
func NewPOSOrderRepository(provider *pfirestore.Provider) (*POSOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("pos order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[posOrderDocument](provider, posOrdersCollection, nil, nil)
	return &POSOrderRepository{provider: provider, base: base}, nil
}

// Insert stores a new POS order document.
func (r *POSOrderRepository) Insert(ctx context.Context, order domain.POSOrder) error {
	if r == nil || r.base == nil {
		return errors.New("pos order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("pos order repository: id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainPOSOrder(order)); err != nil {
		return pfirestore.WrapError("posorders.insert", err)
	}
	return nil
}

// FindByID loads a single POS order.
func (r *POSOrderRepository) FindByID(ctx context.Context, id string) (domain.POSOrder, error) {
	if r == nil || r.base == nil {
		return domain.POSOrder{}, errors.New("pos order repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return domain.POSOrder{}, errors.New("pos order repository: id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.POSOrder{}, err
	}
	return toDomainPOSOrder(doc.ID, doc.Data)
}

// FindByIDs resolves the given POS orders, preserving input order. A missing
// ID surfaces as a not-found error naming the offender.
func (r *POSOrderRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.POSOrder, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("pos order repository not initialised")
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
			return nil, errors.New("pos order repository: id is required")
		}
		refs = append(refs, client.Collection(posOrdersCollection).Doc(trimmed))
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("posorders.findByIds", err)
	}

	orders := make([]domain.POSOrder, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			return nil, pfirestore.WrapError("posorders.findByIds",
				notFoundError(fmt.Sprintf("pos order %s not found", snap.Ref.ID)))
		}
		var doc posOrderDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode pos order %s: %w", snap.Ref.ID, err)
		}
		order, err := toDomainPOSOrder(snap.Ref.ID, doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdatePaymentStatus overwrites only the payment status and update timestamp.
func (r *POSOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, updatedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("pos order repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("pos order repository: id is required")
	}

	_, err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "paymentStatus", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
	return err
}

func fromDomainPOSOrder(order domain.POSOrder) posOrderDocument {
	items := make([]posLineItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, posLineItemDocument{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Title:      strings.TrimSpace(item.Title),
			Quantity:   item.Quantity,
			UnitPrice:  encodeAmount(item.UnitPrice),
			Total:      encodeAmount(item.Total),
		})
	}
	return posOrderDocument{
		OrderRef:      strings.TrimSpace(order.OrderRef),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		CustomerRef:   strings.TrimSpace(order.CustomerRef),
		Items:         items,
		TotalPrice:    encodeAmount(order.TotalPrice),
		Discount:      encodeAmount(order.Discount),
		PaymentStatus: string(order.PaymentStatus),
		Date:          order.Date.UTC(),
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
}

func toDomainPOSOrder(id string, doc posOrderDocument) (domain.POSOrder, error) {
	items := make([]domain.POSLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		unitPrice, err := decodeAmount(item.UnitPrice)
		if err != nil {
			return domain.POSOrder{}, err
		}
		total, err := decodeAmount(item.Total)
		if err != nil {
			return domain.POSOrder{}, err
		}
		items = append(items, domain.POSLineItem{
			ProductRef: item.ProductRef,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			Total:      total,
		})
	}

	totalPrice, err := decodeAmount(doc.TotalPrice)
	if err != nil {
		return domain.POSOrder{}, err
	}
	discount, err := decodeAmount(doc.Discount)
	if err != nil {
		return domain.POSOrder{}, err
	}
	return domain.POSOrder{
		ID:            id,
		OrderRef:      doc.OrderRef,
		OrderNumber:   doc.OrderNumber,
		CustomerRef:   doc.CustomerRef,
		Items:         items,
		TotalPrice:    totalPrice,
		Discount:      discount,
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		Date:          doc.Date,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}
