package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/bizledger/api/internal/domain"
)

func newIdentityService(t *testing.T, orders *stubOrderRepository) OrderIdentityService {
	t.Helper()
	sequences, err := NewSequenceService(SequenceServiceDeps{Repository: newStubCounterRepository()})
	if err != nil {
		t.Fatalf("new sequence service: %v", err)
	}
	svc, err := NewOrderIdentityService(OrderIdentityServiceDeps{
		Orders:    orders,
		Sequences: sequences,
		Clock:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}
	return svc
}

func TestMintAssignsTypedPrefixes(t *testing.T) {
	cases := []struct {
		kind   domain.OrderKind
		prefix string
	}{
		{kind: domain.OrderKindService, prefix: "SRV"},
		{kind: domain.OrderKindInstallation, prefix: "INS"},
		{kind: domain.OrderKindPOS, prefix: "POS"},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			orders := newStubOrderRepository()
			svc := newIdentityService(t, orders)

			order, err := svc.Mint(context.Background(), MintOrderCommand{Kind: tc.kind, CustomerRef: "cust-1"})
			if err != nil {
				t.Fatalf("mint: %v", err)
			}
			expected := tc.prefix + "00001"
			if order.OrderNumber != expected {
				t.Fatalf("expected %s, got %s", expected, order.OrderNumber)
			}
			if order.ID != order.OrderNumber {
				t.Fatalf("expected identity keyed by order number, got id %s", order.ID)
			}
			if _, ok := orders.orders[order.ID]; !ok {
				t.Fatalf("expected order persisted under %s", order.ID)
			}
		})
	}
}

func TestMintRejectsUnknownKind(t *testing.T) {
	svc := newIdentityService(t, newStubOrderRepository())
	if _, err := svc.Mint(context.Background(), MintOrderCommand{Kind: "warranty", CustomerRef: "cust-1"}); !errors.Is(err, ErrOrderInvalidKind) {
		t.Fatalf("expected ErrOrderInvalidKind, got %v", err)
	}
}

func TestMintRetriesOnNumberCollision(t *testing.T) {
	orders := newStubOrderRepository()
	orders.insertErrs = []error{
		conflictErr("order SRV00001 already exists"),
		conflictErr("order SRV00002 already exists"),
	}
	svc := newIdentityService(t, orders)

	order, err := svc.Mint(context.Background(), MintOrderCommand{Kind: domain.OrderKindService, CustomerRef: "cust-1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if order.OrderNumber != "SRV00003" {
		t.Fatalf("expected third allocation SRV00003, got %s", order.OrderNumber)
	}
	if orders.inserts != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", orders.inserts)
	}
}

func TestMintGivesUpAfterRepeatedCollisions(t *testing.T) {
	orders := newStubOrderRepository()
	for i := 0; i < mintMaxAttempts; i++ {
		orders.insertErrs = append(orders.insertErrs, conflictErr("taken"))
	}
	svc := newIdentityService(t, orders)

	if _, err := svc.Mint(context.Background(), MintOrderCommand{Kind: domain.OrderKindService, CustomerRef: "cust-1"}); !errors.Is(err, ErrOrderMintExhausted) {
		t.Fatalf("expected ErrOrderMintExhausted, got %v", err)
	}
}

func TestMintDoesNotRetryNonConflictFailures(t *testing.T) {
	orders := newStubOrderRepository()
	orders.insertErrs = []error{unavailableErr("backend down")}
	svc := newIdentityService(t, orders)

	if _, err := svc.Mint(context.Background(), MintOrderCommand{Kind: domain.OrderKindService, CustomerRef: "cust-1"}); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if orders.inserts != 1 {
		t.Fatalf("expected a single insert attempt, got %d", orders.inserts)
	}
}

func TestConcurrentMintsProduceUniqueNumbers(t *testing.T) {
	orders := newStubOrderRepository()
	svc := newIdentityService(t, orders)

	const workers = 100
	numbers := make(chan string, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			order, err := svc.Mint(context.Background(), MintOrderCommand{
				Kind:        domain.OrderKindService,
				CustomerRef: fmt.Sprintf("cust-%d", idx),
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- order.OrderNumber
		}(i)
	}

	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("mint failed: %v", err)
	}

	seen := make(map[string]struct{}, workers)
	for number := range numbers {
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate order number %s", number)
		}
		seen[number] = struct{}{}
	}
	if len(seen) != workers {
		t.Fatalf("expected %d unique numbers, got %d", workers, len(seen))
	}
}
