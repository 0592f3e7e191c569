package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bizledger/api/internal/domain"
	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrOrderInvalidKind indicates the requested order kind is not recognised.
	ErrOrderInvalidKind = errors.New("order identity: invalid kind")
	// ErrOrderInvalidInput indicates missing or malformed mint parameters.
	ErrOrderInvalidInput = errors.New("order identity: invalid input")
	// ErrOrderMintExhausted indicates every allocation attempt collided with an existing order number.
	ErrOrderMintExhausted = errors.New("order identity: mint retries exhausted")
)

const mintMaxAttempts = 5

// OrderIdentityServiceDeps bundles collaborators required to construct an order identity service.
type OrderIdentityServiceDeps struct {
	Orders    repositories.OrderRepository
	Sequences SequenceService
	Clock     func() time.Time
}

type orderIdentityService struct {
	orders    repositories.OrderRepository
	sequences SequenceService
	clock     func() time.Time
}

var _ OrderIdentityService = (*orderIdentityService)(nil)

// NewOrderIdentityService constructs the identity minting service.
func NewOrderIdentityService(deps OrderIdentityServiceDeps) (OrderIdentityService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order identity service: order repository is required")
	}
	if deps.Sequences == nil {
		return nil, errors.New("order identity service: sequence service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderIdentityService{
		orders:    deps.Orders,
		sequences: deps.Sequences,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Mint allocates a typed order number through the sequence counter, then
// inserts the identity record keyed by that number. A conflicting insert means
// the number is already taken, so the whole allocate-and-insert is retried.
func (s *orderIdentityService) Mint(ctx context.Context, cmd MintOrderCommand) (Order, error) {
	prefix, err := orderNumberPrefix(cmd.Kind)
	if err != nil {
		return Order{}, err
	}
	customerRef := strings.TrimSpace(cmd.CustomerRef)
	if customerRef == "" {
		return Order{}, fmt.Errorf("%w: customer reference is required", ErrOrderInvalidInput)
	}
	date := cmd.Date
	if date.IsZero() {
		date = s.clock()
	}

	var lastErr error
	for attempt := 0; attempt < mintMaxAttempts; attempt++ {
		seq, err := s.sequences.Next(ctx, "order", string(cmd.Kind), SequenceOptions{Step: 1})
		if err != nil {
			return Order{}, err
		}

		number := fmt.Sprintf("%s%05d", prefix, seq.Value)
		now := s.clock()
		order := domain.Order{
			ID:          number,
			OrderNumber: number,
			CustomerRef: customerRef,
			Kind:        cmd.Kind,
			Date:        date.UTC(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.orders.Insert(ctx, order); err != nil {
			if isRepositoryConflict(err) {
				lastErr = err
				continue
			}
			return Order{}, classifyRepositoryError(err, nil, nil)
		}
		return order, nil
	}

	return Order{}, fmt.Errorf("%w after %d attempts: %v", ErrOrderMintExhausted, mintMaxAttempts, lastErr)
}

func orderNumberPrefix(kind OrderKind) (string, error) {
	switch kind {
	case domain.OrderKindService:
		return "SRV", nil
	case domain.OrderKindInstallation:
		return "INS", nil
	case domain.OrderKindPOS:
		return "POS", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrOrderInvalidKind, string(kind))
	}
}
