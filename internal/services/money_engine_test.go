package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/bizledger/api/internal/domain"
)

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMoneyEngineComputePipeline(t *testing.T) {
	engine := NewMoneyEngine()

	lines := []ChargeLine{{SourceOrderRef: "so_1", Charge: dec("1000"), Discount: dec("10")}}
	totals, err := engine.Compute(lines, dec("5"), dec("13"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	assertDecimal(t, "totalAmount", totals.TotalAmount, "900")
	assertDecimal(t, "discountAmount", totals.DiscountAmount, "45")
	assertDecimal(t, "taxableAmount", totals.TaxableAmount, "855")
	assertDecimal(t, "taxAmount", totals.TaxAmount, "111.15")
	assertDecimal(t, "finalTotal", totals.FinalTotal, "966.15")
}

func TestMoneyEngineSumsMultipleLines(t *testing.T) {
	engine := NewMoneyEngine()

	lines := []ChargeLine{
		{SourceOrderRef: "so_1", Charge: dec("250.50"), Discount: dec("0")},
		{SourceOrderRef: "so_2", Charge: dec("100"), Discount: dec("50")},
	}
	totals, err := engine.Compute(lines, dec("0"), dec("0"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	assertDecimal(t, "totalAmount", totals.TotalAmount, "300.50")
	assertDecimal(t, "discountAmount", totals.DiscountAmount, "0")
	assertDecimal(t, "finalTotal", totals.FinalTotal, "300.50")
}

func TestMoneyEngineIsDeterministic(t *testing.T) {
	engine := NewMoneyEngine()
	lines := []ChargeLine{
		{SourceOrderRef: "so_1", Charge: dec("333.33"), Discount: dec("7")},
		{SourceOrderRef: "so_2", Charge: dec("19.99"), Discount: dec("0")},
	}

	first, err := engine.Compute(lines, dec("2.5"), dec("13"))
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := engine.Compute(lines, dec("2.5"), dec("13"))
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if !first.FinalTotal.Equal(second.FinalTotal) || !first.TaxAmount.Equal(second.TaxAmount) {
		t.Fatalf("expected identical totals, got %+v vs %+v", first, second)
	}
}

func TestMoneyEngineRejectsInvalidInput(t *testing.T) {
	engine := NewMoneyEngine()
	valid := []ChargeLine{{SourceOrderRef: "so_1", Charge: dec("100")}}

	cases := []struct {
		name     string
		lines    []ChargeLine
		discount decimal.Decimal
		tax      decimal.Decimal
	}{
		{name: "no lines", lines: nil, discount: dec("0"), tax: dec("0")},
		{name: "negative charge", lines: []ChargeLine{{SourceOrderRef: "so_1", Charge: dec("-1")}}, discount: dec("0"), tax: dec("0")},
		{name: "line discount above 100", lines: []ChargeLine{{SourceOrderRef: "so_1", Charge: dec("100"), Discount: dec("101")}}, discount: dec("0"), tax: dec("0")},
		{name: "negative discount", lines: valid, discount: dec("-5"), tax: dec("0")},
		{name: "tax above 100", lines: valid, discount: dec("0"), tax: dec("150")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Compute(tc.lines, tc.discount, tc.tax); !errors.Is(err, ErrMoneyInvalidInput) {
				t.Fatalf("expected ErrMoneyInvalidInput, got %v", err)
			}
		})
	}
}

func TestDerivePaymentStatusBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		totalPaid string
		final     string
		expected  domain.PaymentStatus
	}{
		{name: "zero paid", totalPaid: "0", final: "100", expected: domain.PaymentStatusUnpaid},
		{name: "negative paid", totalPaid: "-10", final: "100", expected: domain.PaymentStatusUnpaid},
		{name: "below total", totalPaid: "99.99", final: "100", expected: domain.PaymentStatusPartial},
		{name: "exactly total", totalPaid: "100", final: "100", expected: domain.PaymentStatusPaid},
		{name: "above total", totalPaid: "150", final: "100", expected: domain.PaymentStatusPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.DerivePaymentStatus(dec(tc.totalPaid), dec(tc.final))
			if got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, expected string) {
	t.Helper()
	if !got.Equal(dec(expected)) {
		t.Fatalf("expected %s %s, got %s", field, expected, got.String())
	}
}
