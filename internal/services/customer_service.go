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
	// ErrCustomerInvalidInput indicates a malformed directory request.
	ErrCustomerInvalidInput = errors.New("customers: invalid input")
	// ErrCustomerNotFound indicates the customer does not exist.
	ErrCustomerNotFound = errors.New("customers: customer not found")
)

// CustomerServiceDeps bundles collaborators required to construct a customer service.
type CustomerServiceDeps struct {
	Customers repositories.CustomerRepository
}

type customerService struct {
	customers repositories.CustomerRepository
}

var _ CustomerService = (*customerService)(nil)

// NewCustomerService constructs the read-only customer directory service.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: repository is required")
	}
	return &customerService{customers: deps.Customers}, nil
}

func (s *customerService) Get(ctx context.Context, customerID string) (Customer, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrCustomerInvalidInput)
	}
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return Customer{}, classifyRepositoryError(err, ErrCustomerNotFound, nil)
	}
	return customer, nil
}

func (s *customerService) List(ctx context.Context, pager Pagination) (domain.CursorPage[Customer], error) {
	page, err := s.customers.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[Customer]{}, classifyRepositoryError(err, nil, nil)
	}
	return page, nil
}
