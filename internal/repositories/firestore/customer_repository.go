package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/bizledger/api/internal/domain"
	pfirestore "github.com/bizledger/api/internal/platform/firestore"
	"github.com/bizledger/api/internal/platform/pagination"
	"github.com/bizledger/api/internal/repositories"
)

const customersCollection = "customers"

type customerDocument struct {
	Name    string `firestore:"name"`
	PhoneNo string `firestore:"phoneNo"`
	Address string `firestore:"address"`
}

// CustomerRepository reads the customer directory. Billing never mutates it.
type CustomerRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[customerDocument]
}

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[customerDocument](provider, customersCollection, nil, nil)
	return &CustomerRepository{provider: provider, base: base}, nil
}

// FindByID loads a single customer.
func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	if r == nil || r.base == nil {
		return domain.Customer{}, errors.New("customer repository not initialised")
	}
	if strings.TrimSpace(customerID) == "" {
		return domain.Customer{}, errors.New("customer repository: customer id is required")
	}

	doc, err := r.base.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return toDomainCustomer(doc.ID, doc.Data), nil
}

// List returns customers ordered by name with cursor paging on the document ID.
func (r *CustomerRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Customer], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Customer]{}, errors.New("customer repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, err
	}

	query := client.Collection(customersCollection).
		OrderBy("name", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil || len(cursor.StartAfter) != 2 {
			return domain.CursorPage[domain.Customer]{}, errors.New("customers.list: invalid page token")
		}
		query = query.StartAfter(cursor.StartAfter...)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var items []domain.Customer
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Customer]{}, pfirestore.WrapError("customers.list", err)
		}
		var doc customerDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Customer]{}, fmt.Errorf("decode customer %s: %w", snap.Ref.ID, err)
		}
		items = append(items, toDomainCustomer(snap.Ref.ID, doc))
	}

	nextToken := ""
	if limit > 0 && len(items) == fetchLimit {
		last := items[len(items)-1]
		nextToken, _ = pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Name, last.ID}})
		items = items[:len(items)-1]
	}

	return domain.CursorPage[domain.Customer]{Items: items, NextPageToken: nextToken}, nil
}

func toDomainCustomer(id string, doc customerDocument) domain.Customer {
	return domain.Customer{
		ID:      id,
		Name:    doc.Name,
		PhoneNo: doc.PhoneNo,
		Address: doc.Address,
	}
}
