package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/bizledger/api/internal/domain"
	pfirestore "github.com/bizledger/api/internal/platform/firestore"
	"github.com/bizledger/api/internal/repositories"
)

const (
	billingCollection = "billingrecords"

	// Firestore caps array-contains-any disjunctions at 30 values per query.
	sourceOrderChunkSize = 30
)

type billingSourceDocument struct {
	SourceOrderRef string `firestore:"sourceOrderRef"`
	OrderNumber    string `firestore:"orderNumber"`
	OrderRef       string `firestore:"orderRef"`
}

type billingDocument struct {
	Invoice        string                  `firestore:"invoice"`
	Date           time.Time               `firestore:"date"`
	CustomerRef    string                  `firestore:"customerRef"`
	Type           string                  `firestore:"type"`
	Sources        []billingSourceDocument `firestore:"sources"`
	SourceOrderIDs []string                `firestore:"sourceOrderIds"`
	PaidAmount     string                  `firestore:"paidAmount"`
	TotalPaid      string                  `firestore:"totalPaid"`
	TotalAmount    string                  `firestore:"totalAmount"`
	Discount       string                  `firestore:"discount"`
	DiscountAmount string                  `firestore:"discountAmount"`
	TaxableAmount  string                  `firestore:"taxableAmount"`
	Tax            string                  `firestore:"tax"`
	TaxAmount      string                  `firestore:"taxAmount"`
	FinalTotal     string                  `firestore:"finalTotal"`
	Status         string                  `firestore:"status"`
	CreatedAt      time.Time               `firestore:"createdAt"`
	UpdatedAt      time.Time               `firestore:"updatedAt"`
}

// BillingRepository persists billing records. The invoice number doubles as
// the document ID, so duplicate inserts conflict rather than silently fork.
type BillingRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[billingDocument]
}

var _ repositories.BillingRepository = (*BillingRepository)(nil)

// NewBillingRepository constructs a Firestore-backed billing repository.
func NewBillingRepository(provider *pfirestore.Provider) (*BillingRepository, error) {
	if provider == nil {
		return nil, errors.New("billing repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[billingDocument](provider, billingCollection, nil, nil)
	return &BillingRepository{provider: provider, base: base}, nil
}

// Insert creates the billing record, conflicting when the invoice already exists.
func (r *BillingRepository) Insert(ctx context.Context, record domain.BillingRecord) error {
	if r == nil || r.base == nil {
		return errors.New("billing repository not initialised")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return errors.New("billing repository: record id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainBilling(record)); err != nil {
		return pfirestore.WrapError("billing.insert", err)
	}
	return nil
}

// Update overwrites the billing record in place.
func (r *BillingRepository) Update(ctx context.Context, record domain.BillingRecord) error {
	if r == nil || r.base == nil {
		return errors.New("billing repository not initialised")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return errors.New("billing repository: record id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, fromDomainBilling(record)); err != nil {
		return pfirestore.WrapError("billing.update", err)
	}
	return nil
}

// FindByID loads a billing record by its invoice-derived ID.
func (r *BillingRepository) FindByID(ctx context.Context, billingID string) (domain.BillingRecord, error) {
	if r == nil || r.base == nil {
		return domain.BillingRecord{}, errors.New("billing repository not initialised")
	}
	if strings.TrimSpace(billingID) == "" {
		return domain.BillingRecord{}, errors.New("billing repository: record id is required")
	}

	doc, err := r.base.Get(ctx, billingID)
	if err != nil {
		return domain.BillingRecord{}, err
	}
	return toDomainBilling(doc.ID, doc.Data)
}

// Delete removes the billing record, failing when it does not exist.
func (r *BillingRepository) Delete(ctx context.Context, billingID string) error {
	if r == nil || r.base == nil {
		return errors.New("billing repository not initialised")
	}
	if strings.TrimSpace(billingID) == "" {
		return errors.New("billing repository: record id is required")
	}

	ref, err := r.base.DocumentRef(ctx, billingID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("billing.delete", err)
	}
	return nil
}

// List returns billing records filtered by customer, source order, status, and
// date range, newest first.
func (r *BillingRepository) List(ctx context.Context, filter repositories.BillingListFilter) (domain.CursorPage[domain.BillingRecord], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.BillingRecord]{}, errors.New("billing repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.BillingRecord]{}, err
	}

	query := client.Collection(billingCollection).Query
	if customer := strings.TrimSpace(filter.CustomerRef); customer != "" {
		query = query.Where("customerRef", "==", customer)
	}
	if sourceID := strings.TrimSpace(filter.SourceOrderID); sourceID != "" {
		query = query.Where("sourceOrderIds", "array-contains", sourceID)
	}
	if len(filter.Status) > 0 {
		query = query.Where("status", "in", filter.Status)
	}
	if filter.DateRange.From != nil {
		query = query.Where("date", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("date", "<=", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("date", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursorDate, cursorID, err := decodeDateCursor(token)
		if err != nil {
			return domain.CursorPage[domain.BillingRecord]{}, fmt.Errorf("billing.list: invalid page token: %w", err)
		}
		query = query.StartAfter(cursorDate, cursorID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var items []domain.BillingRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.BillingRecord]{}, pfirestore.WrapError("billing.list", err)
		}
		var doc billingDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.BillingRecord]{}, fmt.Errorf("decode billing record %s: %w", snap.Ref.ID, err)
		}
		record, err := toDomainBilling(snap.Ref.ID, doc)
		if err != nil {
			return domain.CursorPage[domain.BillingRecord]{}, err
		}
		items = append(items, record)
	}

	nextToken := ""
	if limit > 0 && len(items) == fetchLimit {
		last := items[len(items)-1]
		nextToken = encodeDateCursor(last.Date, last.ID)
		items = items[:len(items)-1]
	}

	return domain.CursorPage[domain.BillingRecord]{Items: items, NextPageToken: nextToken}, nil
}

// ListBySourceOrders returns every billing record of the given type whose
// source-order set intersects the supplied IDs. Queries are chunked to stay
// inside Firestore's disjunction limit and results are de-duplicated, since a
// record matching IDs in two chunks would otherwise appear twice.
func (r *BillingRepository) ListBySourceOrders(ctx context.Context, billingType domain.BillingType, sourceOrderIDs []string) ([]domain.BillingRecord, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("billing repository not initialised")
	}

	ids := make([]string, 0, len(sourceOrderIDs))
	for _, id := range sourceOrderIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var records []domain.BillingRecord

	for start := 0; start < len(ids); start += sourceOrderChunkSize {
		end := start + sourceOrderChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		query := client.Collection(billingCollection).
			Where("type", "==", string(billingType)).
			Where("sourceOrderIds", "array-contains-any", ids[start:end])

		iter := query.Documents(ctx)
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, pfirestore.WrapError("billing.listBySourceOrders", err)
			}
			if _, dup := seen[snap.Ref.ID]; dup {
				continue
			}
			seen[snap.Ref.ID] = struct{}{}

			var doc billingDocument
			if err := snap.DataTo(&doc); err != nil {
				iter.Stop()
				return nil, fmt.Errorf("decode billing record %s: %w", snap.Ref.ID, err)
			}
			record, err := toDomainBilling(snap.Ref.ID, doc)
			if err != nil {
				iter.Stop()
				return nil, err
			}
			records = append(records, record)
		}
		iter.Stop()
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return records[i].ID < records[j].ID
		}
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

func fromDomainBilling(record domain.BillingRecord) billingDocument {
	sources := make([]billingSourceDocument, 0, len(record.Sources))
	for _, source := range record.Sources {
		sources = append(sources, billingSourceDocument{
			SourceOrderRef: strings.TrimSpace(source.SourceOrderRef),
			OrderNumber:    strings.TrimSpace(source.OrderNumber),
			OrderRef:       strings.TrimSpace(source.OrderRef),
		})
	}
	return billingDocument{
		Invoice:        strings.TrimSpace(record.Invoice),
		Date:           record.Date.UTC(),
		CustomerRef:    strings.TrimSpace(record.CustomerRef),
		Type:           string(record.Type),
		Sources:        sources,
		SourceOrderIDs: append([]string(nil), record.SourceOrderIDs...),
		PaidAmount:     encodeAmount(record.PaidAmount),
		TotalPaid:      encodeAmount(record.TotalPaid),
		TotalAmount:    encodeAmount(record.TotalAmount),
		Discount:       encodeAmount(record.Discount),
		DiscountAmount: encodeAmount(record.DiscountAmount),
		TaxableAmount:  encodeAmount(record.TaxableAmount),
		Tax:            encodeAmount(record.Tax),
		TaxAmount:      encodeAmount(record.TaxAmount),
		FinalTotal:     encodeAmount(record.FinalTotal),
		Status:         string(record.Status),
		CreatedAt:      record.CreatedAt.UTC(),
		UpdatedAt:      record.UpdatedAt.UTC(),
	}
}

func toDomainBilling(id string, doc billingDocument) (domain.BillingRecord, error) {
	sources := make([]domain.BillingSource, 0, len(doc.Sources))
	for _, source := range doc.Sources {
		sources = append(sources, domain.BillingSource{
			SourceOrderRef: source.SourceOrderRef,
			OrderNumber:    source.OrderNumber,
			OrderRef:       source.OrderRef,
		})
	}

	record := domain.BillingRecord{
		ID:             id,
		Invoice:        doc.Invoice,
		Date:           doc.Date,
		CustomerRef:    doc.CustomerRef,
		Type:           domain.BillingType(doc.Type),
		Sources:        sources,
		SourceOrderIDs: append([]string(nil), doc.SourceOrderIDs...),
		Status:         domain.PaymentStatus(doc.Status),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}

	var err error
	if record.PaidAmount, err = decodeAmount(doc.PaidAmount); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.TotalPaid, err = decodeAmount(doc.TotalPaid); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.TotalAmount, err = decodeAmount(doc.TotalAmount); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.Discount, err = decodeAmount(doc.Discount); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.DiscountAmount, err = decodeAmount(doc.DiscountAmount); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.TaxableAmount, err = decodeAmount(doc.TaxableAmount); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.Tax, err = decodeAmount(doc.Tax); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.TaxAmount, err = decodeAmount(doc.TaxAmount); err != nil {
		return domain.BillingRecord{}, err
	}
	if record.FinalTotal, err = decodeAmount(doc.FinalTotal); err != nil {
		return domain.BillingRecord{}, err
	}
	return record, nil
}
