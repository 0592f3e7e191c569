package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrSequenceInvalidInput indicates the caller supplied invalid sequence parameters.
	ErrSequenceInvalidInput = errors.New("sequence: invalid input")
	// ErrSequenceExhausted indicates the requested counter cannot increment further due to max bounds.
	ErrSequenceExhausted = errors.New("sequence: exhausted")
)

// SequenceServiceDeps bundles collaborators required to construct a sequence service instance.
type SequenceServiceDeps struct {
	Repository repositories.CounterRepository
	// InvoiceStep overrides the increment applied when minting invoice numbers.
	// Zero keeps the default of 1.
	InvoiceStep int64
}

type sequenceService struct {
	repo        repositories.CounterRepository
	invoiceStep int64
	configMu    sync.Mutex
	configured  map[string]sequenceConfigSignature
}

type sequenceConfigSignature struct {
	stepSet      bool
	step         int64
	maxSet       bool
	maxValue     int64
	initialSet   bool
	initialValue int64
}

// NewSequenceService constructs a service that manages document sequences on top of the counter repository.
func NewSequenceService(deps SequenceServiceDeps) (SequenceService, error) {
	if deps.Repository == nil {
		return nil, errors.New("sequence service: repository is required")
	}
	step := deps.InvoiceStep
	if step <= 0 {
		step = 1
	}
	return &sequenceService{
		repo:        deps.Repository,
		invoiceStep: step,
		configured:  make(map[string]sequenceConfigSignature),
	}, nil
}

func (s *sequenceService) Next(ctx context.Context, scope, name string, opts SequenceOptions) (SequenceValue, error) {
	scope = strings.TrimSpace(scope)
	name = strings.TrimSpace(name)
	if scope == "" {
		return SequenceValue{}, fmt.Errorf("%w: scope is required", ErrSequenceInvalidInput)
	}
	if name == "" {
		return SequenceValue{}, fmt.Errorf("%w: name is required", ErrSequenceInvalidInput)
	}

	counterID := scope + ":" + name

	if err := s.ensureConfiguration(ctx, counterID, opts); err != nil {
		return SequenceValue{}, err
	}

	value, err := s.repo.Next(ctx, counterID, opts.Step)
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			switch counterErr.Code {
			case repositories.CounterErrorInvalidInput:
				return SequenceValue{}, fmt.Errorf("%w: %s", ErrSequenceInvalidInput, counterErr.Message)
			case repositories.CounterErrorExhausted:
				return SequenceValue{}, fmt.Errorf("%w: %s", ErrSequenceExhausted, counterErr.Message)
			}
		}
		return SequenceValue{}, err
	}

	return SequenceValue{Value: value, Formatted: formatSequence(value, opts)}, nil
}

func (s *sequenceService) NextInvoiceNumber(ctx context.Context) (string, error) {
	result, err := s.Next(ctx, "invoice", "billing", SequenceOptions{
		Step:      s.invoiceStep,
		Prefix:    "INV-",
		PadLength: 5,
	})
	if err != nil {
		return "", err
	}
	return result.Formatted, nil
}

func (s *sequenceService) ensureConfiguration(ctx context.Context, counterID string, opts SequenceOptions) error {
	signature := sequenceConfigSignature{}
	if opts.Step > 0 {
		signature.stepSet = true
		signature.step = opts.Step
	}
	if opts.MaxValue != nil {
		signature.maxSet = true
		signature.maxValue = *opts.MaxValue
	}
	if opts.InitialValue != nil {
		signature.initialSet = true
		signature.initialValue = *opts.InitialValue
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	if existing, ok := s.configured[counterID]; ok && existing == signature {
		return nil
	}

	// Step alone is carried on every Next call; only bounds and initial
	// values need a Configure round-trip.
	if signature.maxSet || signature.initialSet {
		cfg := repositories.CounterConfig{}
		if signature.stepSet {
			cfg.Step = signature.step
		}
		if signature.maxSet {
			cfg.MaxValue = &signature.maxValue
		}
		if signature.initialSet {
			cfg.InitialValue = &signature.initialValue
		}
		if err := s.repo.Configure(ctx, counterID, cfg); err != nil {
			return err
		}
	}
	s.configured[counterID] = signature
	return nil
}

func formatSequence(value int64, opts SequenceOptions) string {
	formatted := strconv.FormatInt(value, 10)
	if opts.PadLength > 0 {
		formatted = fmt.Sprintf("%0*d", opts.PadLength, value)
	}
	if opts.Prefix != "" {
		formatted = opts.Prefix + formatted
	}
	return formatted
}
