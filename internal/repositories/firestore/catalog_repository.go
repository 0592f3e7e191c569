package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/bizledger/api/internal/domain"
	pfirestore "github.com/bizledger/api/internal/platform/firestore"
	"github.com/bizledger/api/internal/repositories"
)

const (
	servicesCollection = "services"
	productsCollection = "products"
)

type catalogServiceDocument struct {
	Title  string `firestore:"title"`
	Charge string `firestore:"charge"`
}

type catalogProductDocument struct {
	Title string `firestore:"title"`
	Price string `firestore:"price"`
}

// CatalogRepository reads service and product catalog entries for display.
type CatalogRepository struct {
	services *pfirestore.BaseRepository[catalogServiceDocument]
	products *pfirestore.BaseRepository[catalogProductDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		services: pfirestore.NewBaseRepository[catalogServiceDocument](provider, servicesCollection, nil, nil),
		products: pfirestore.NewBaseRepository[catalogProductDocument](provider, productsCollection, nil, nil),
	}, nil
}

// FindService loads one catalog service entry.
func (r *CatalogRepository) FindService(ctx context.Context, serviceID string) (domain.CatalogService, error) {
	if r == nil || r.services == nil {
		return domain.CatalogService{}, errors.New("catalog repository not initialised")
	}
	if strings.TrimSpace(serviceID) == "" {
		return domain.CatalogService{}, errors.New("catalog repository: service id is required")
	}

	doc, err := r.services.Get(ctx, serviceID)
	if err != nil {
		return domain.CatalogService{}, err
	}
	charge, err := decodeAmount(doc.Data.Charge)
	if err != nil {
		return domain.CatalogService{}, err
	}
	return domain.CatalogService{ID: doc.ID, Title: doc.Data.Title, Charge: charge}, nil
}

// FindProduct loads one catalog product entry.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.CatalogProduct, error) {
	if r == nil || r.products == nil {
		return domain.CatalogProduct{}, errors.New("catalog repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.CatalogProduct{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.CatalogProduct{}, err
	}
	price, err := decodeAmount(doc.Data.Price)
	if err != nil {
		return domain.CatalogProduct{}, err
	}
	return domain.CatalogProduct{ID: doc.ID, Title: doc.Data.Title, Price: price}, nil
}
