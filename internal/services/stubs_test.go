package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/bizledger/api/internal/domain"
	"github.com/bizledger/api/internal/repositories"
)

// testRepoError is a categorised repository error for driving service branches.
type testRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *testRepoError) Error() string       { return e.msg }
func (e *testRepoError) IsNotFound() bool    { return e.notFound }
func (e *testRepoError) IsConflict() bool    { return e.conflict }
func (e *testRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error    { return &testRepoError{msg: msg, notFound: true} }
func conflictErr(msg string) error    { return &testRepoError{msg: msg, conflict: true} }
func unavailableErr(msg string) error { return &testRepoError{msg: msg, unavailable: true} }

var _ repositories.RepositoryError = (*testRepoError)(nil)

type stubCounterRepository struct {
	mu      sync.Mutex
	values  map[string]int64
	steps   map[string]int64
	max     map[string]int64
	nextErr error
}

func newStubCounterRepository() *stubCounterRepository {
	return &stubCounterRepository{
		values: make(map[string]int64),
		steps:  make(map[string]int64),
		max:    make(map[string]int64),
	}
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextErr != nil {
		return 0, s.nextErr
	}
	increment := step
	if increment <= 0 {
		if configured := s.steps[counterID]; configured > 0 {
			increment = configured
		} else {
			increment = 1
		}
	}
	next := s.values[counterID] + increment
	if max, ok := s.max[counterID]; ok && next > max {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted,
			fmt.Sprintf("counter %s exceeded max value %d", counterID, max), nil)
	}
	s.values[counterID] = next
	return next, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Step > 0 {
		s.steps[counterID] = cfg.Step
	}
	if cfg.MaxValue != nil {
		s.max[counterID] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		s.values[counterID] = *cfg.InitialValue
	}
	return nil
}

type stubOrderRepository struct {
	mu         sync.Mutex
	orders     map[string]domain.Order
	insertErrs []error
	inserts    int
}

func newStubOrderRepository() *stubOrderRepository {
	return &stubOrderRepository{orders: make(map[string]domain.Order)}
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := s.orders[order.ID]; exists {
		return conflictErr("order " + order.ID + " already exists")
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundErr("order " + orderID + " not found")
	}
	return order, nil
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Order
	for _, order := range s.orders {
		if filter.CustomerRef != "" && order.CustomerRef != filter.CustomerRef {
			continue
		}
		items = append(items, order)
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

type statusUpdate struct {
	id     string
	status domain.PaymentStatus
}

type stubServiceOrderRepository struct {
	mu            sync.Mutex
	orders        map[string]domain.ServiceOrder
	statusUpdates []statusUpdate
	updateErrFor  map[string]error
}

func newStubServiceOrderRepository() *stubServiceOrderRepository {
	return &stubServiceOrderRepository{
		orders:       make(map[string]domain.ServiceOrder),
		updateErrFor: make(map[string]error),
	}
}

func (s *stubServiceOrderRepository) Insert(ctx context.Context, order domain.ServiceOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return conflictErr("service order " + order.ID + " already exists")
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubServiceOrderRepository) FindByID(ctx context.Context, id string) (domain.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return domain.ServiceOrder{}, notFoundErr("service order " + id + " not found")
	}
	return order, nil
}

func (s *stubServiceOrderRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]domain.ServiceOrder, 0, len(ids))
	for _, id := range ids {
		order, ok := s.orders[id]
		if !ok {
			return nil, notFoundErr("service order " + id + " not found")
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *stubServiceOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.updateErrFor[id]; ok {
		return err
	}
	order, ok := s.orders[id]
	if !ok {
		return notFoundErr("service order " + id + " not found")
	}
	order.PaymentStatus = status
	order.UpdatedAt = updatedAt
	s.orders[id] = order
	s.statusUpdates = append(s.statusUpdates, statusUpdate{id: id, status: status})
	return nil
}

type stubPOSOrderRepository struct {
	mu            sync.Mutex
	orders        map[string]domain.POSOrder
	statusUpdates []statusUpdate
}

func newStubPOSOrderRepository() *stubPOSOrderRepository {
	return &stubPOSOrderRepository{orders: make(map[string]domain.POSOrder)}
}

func (s *stubPOSOrderRepository) Insert(ctx context.Context, order domain.POSOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return conflictErr("pos order " + order.ID + " already exists")
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubPOSOrderRepository) FindByID(ctx context.Context, id string) (domain.POSOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return domain.POSOrder{}, notFoundErr("pos order " + id + " not found")
	}
	return order, nil
}

func (s *stubPOSOrderRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.POSOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]domain.POSOrder, 0, len(ids))
	for _, id := range ids {
		order, ok := s.orders[id]
		if !ok {
			return nil, notFoundErr("pos order " + id + " not found")
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *stubPOSOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return notFoundErr("pos order " + id + " not found")
	}
	order.PaymentStatus = status
	order.UpdatedAt = updatedAt
	s.orders[id] = order
	s.statusUpdates = append(s.statusUpdates, statusUpdate{id: id, status: status})
	return nil
}

type stubBillingRepository struct {
	mu      sync.Mutex
	records map[string]domain.BillingRecord
	inserts int
	deletes []string
	listErr error
}

func newStubBillingRepository() *stubBillingRepository {
	return &stubBillingRepository{records: make(map[string]domain.BillingRecord)}
}

func (s *stubBillingRepository) Insert(ctx context.Context, record domain.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if _, exists := s.records[record.ID]; exists {
		return conflictErr("billing record " + record.ID + " already exists")
	}
	s.records[record.ID] = record
	return nil
}

func (s *stubBillingRepository) Update(ctx context.Context, record domain.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; !exists {
		return notFoundErr("billing record " + record.ID + " not found")
	}
	s.records[record.ID] = record
	return nil
}

func (s *stubBillingRepository) FindByID(ctx context.Context, billingID string) (domain.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[billingID]
	if !ok {
		return domain.BillingRecord{}, notFoundErr("billing record " + billingID + " not found")
	}
	return record, nil
}

func (s *stubBillingRepository) Delete(ctx context.Context, billingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[billingID]; !ok {
		return notFoundErr("billing record " + billingID + " not found")
	}
	delete(s.records, billingID)
	s.deletes = append(s.deletes, billingID)
	return nil
}

func (s *stubBillingRepository) List(ctx context.Context, filter repositories.BillingListFilter) (domain.CursorPage[domain.BillingRecord], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return domain.CursorPage[domain.BillingRecord]{}, s.listErr
	}
	var items []domain.BillingRecord
	for _, record := range s.records {
		if filter.CustomerRef != "" && record.CustomerRef != filter.CustomerRef {
			continue
		}
		items = append(items, record)
	}
	return domain.CursorPage[domain.BillingRecord]{Items: items}, nil
}

func (s *stubBillingRepository) ListBySourceOrders(ctx context.Context, billingType domain.BillingType, sourceOrderIDs []string) ([]domain.BillingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	wanted := make(map[string]struct{}, len(sourceOrderIDs))
	for _, id := range sourceOrderIDs {
		wanted[id] = struct{}{}
	}
	var matches []domain.BillingRecord
	for _, record := range s.records {
		if record.Type != billingType {
			continue
		}
		for _, id := range record.SourceOrderIDs {
			if _, ok := wanted[id]; ok {
				matches = append(matches, record)
				break
			}
		}
	}
	return matches, nil
}

type stubCustomerRepository struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	lookups   []string
}

func newStubCustomerRepository(customers ...domain.Customer) *stubCustomerRepository {
	repo := &stubCustomerRepository{customers: make(map[string]domain.Customer)}
	for _, customer := range customers {
		repo.customers[customer.ID] = customer
	}
	return repo
}

func (s *stubCustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, customerID)
	customer, ok := s.customers[customerID]
	if !ok {
		return domain.Customer{}, notFoundErr("customer " + customerID + " not found")
	}
	return customer, nil
}

func (s *stubCustomerRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Customer], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Customer
	for _, customer := range s.customers {
		items = append(items, customer)
	}
	return domain.CursorPage[domain.Customer]{Items: items}, nil
}

type stubCatalogRepository struct {
	services map[string]domain.CatalogService
	products map[string]domain.CatalogProduct
}

func newStubCatalogRepository() *stubCatalogRepository {
	return &stubCatalogRepository{
		services: make(map[string]domain.CatalogService),
		products: make(map[string]domain.CatalogProduct),
	}
}

func (s *stubCatalogRepository) FindService(ctx context.Context, serviceID string) (domain.CatalogService, error) {
	service, ok := s.services[serviceID]
	if !ok {
		return domain.CatalogService{}, notFoundErr("service " + serviceID + " not found")
	}
	return service, nil
}

func (s *stubCatalogRepository) FindProduct(ctx context.Context, productID string) (domain.CatalogProduct, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.CatalogProduct{}, notFoundErr("product " + productID + " not found")
	}
	return product, nil
}

type stubEventPublisher struct {
	mu       sync.Mutex
	messages []BillingEventMessage
	err      error
}

func (s *stubEventPublisher) PublishBillingEvent(ctx context.Context, message BillingEventMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, message)
	return fmt.Sprintf("msg-%d", len(s.messages)), nil
}

func (s *stubEventPublisher) published() []BillingEventMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BillingEventMessage, len(s.messages))
	copy(out, s.messages)
	return out
}
