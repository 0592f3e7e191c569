package services

import (
	"context"
	"errors"
	"testing"
)

func TestSequenceServiceFormatsValues(t *testing.T) {
	repo := newStubCounterRepository()
	svc, err := NewSequenceService(SequenceServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new sequence service: %v", err)
	}

	value, err := svc.Next(context.Background(), "order", "service", SequenceOptions{Step: 1, Prefix: "SRV", PadLength: 5})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if value.Value != 1 {
		t.Fatalf("expected raw value 1, got %d", value.Value)
	}
	if value.Formatted != "SRV00001" {
		t.Fatalf("expected SRV00001, got %s", value.Formatted)
	}
}

func TestSequenceServiceNextInvoiceNumber(t *testing.T) {
	repo := newStubCounterRepository()
	svc, err := NewSequenceService(SequenceServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new sequence service: %v", err)
	}

	first, err := svc.NextInvoiceNumber(context.Background())
	if err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	second, err := svc.NextInvoiceNumber(context.Background())
	if err != nil {
		t.Fatalf("second invoice: %v", err)
	}
	if first != "INV-00001" || second != "INV-00002" {
		t.Fatalf("expected INV-00001 then INV-00002, got %s then %s", first, second)
	}
}

func TestSequenceServiceRejectsBlankIdentifiers(t *testing.T) {
	svc, err := NewSequenceService(SequenceServiceDeps{Repository: newStubCounterRepository()})
	if err != nil {
		t.Fatalf("new sequence service: %v", err)
	}

	if _, err := svc.Next(context.Background(), "", "billing", SequenceOptions{}); !errors.Is(err, ErrSequenceInvalidInput) {
		t.Fatalf("expected ErrSequenceInvalidInput for blank scope, got %v", err)
	}
	if _, err := svc.Next(context.Background(), "invoice", "  ", SequenceOptions{}); !errors.Is(err, ErrSequenceInvalidInput) {
		t.Fatalf("expected ErrSequenceInvalidInput for blank name, got %v", err)
	}
}

func TestSequenceServiceMapsExhaustion(t *testing.T) {
	repo := newStubCounterRepository()
	svc, err := NewSequenceService(SequenceServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new sequence service: %v", err)
	}

	max := int64(2)
	opts := SequenceOptions{Step: 1, MaxValue: &max}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Next(ctx, "invoice", "bounded", opts); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
	if _, err := svc.Next(ctx, "invoice", "bounded", opts); !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
}
