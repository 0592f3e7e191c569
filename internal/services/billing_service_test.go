package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/bizledger/api/internal/domain"
)

type billingFixture struct {
	svc           BillingService
	billing       *stubBillingRepository
	serviceOrders *stubServiceOrderRepository
	posOrders     *stubPOSOrderRepository
	customers     *stubCustomerRepository
	events        *stubEventPublisher
	now           time.Time
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()

	fixture := &billingFixture{
		billing:       newStubBillingRepository(),
		serviceOrders: newStubServiceOrderRepository(),
		posOrders:     newStubPOSOrderRepository(),
		customers:     newStubCustomerRepository(domain.Customer{ID: "cust-1", Name: "Acme Traders"}),
		events:        &stubEventPublisher{},
		now:           time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}

	resolver, err := NewSourceResolver(SourceResolverDeps{
		ServiceOrders: fixture.serviceOrders,
		POSOrders:     fixture.posOrders,
		Customers:     fixture.customers,
		Catalog:       newStubCatalogRepository(),
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ledger, err := NewPaymentLedgerAggregator(PaymentLedgerDeps{Billing: fixture.billing})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	sequences, err := NewSequenceService(SequenceServiceDeps{Repository: newStubCounterRepository()})
	if err != nil {
		t.Fatalf("new sequences: %v", err)
	}

	svc, err := NewBillingService(BillingServiceDeps{
		Billing:       fixture.billing,
		ServiceOrders: fixture.serviceOrders,
		POSOrders:     fixture.posOrders,
		Customers:     fixture.customers,
		Resolver:      resolver,
		Ledger:        ledger,
		Money:         NewMoneyEngine(),
		Sequences:     sequences,
		Events:        fixture.events,
		Clock:         func() time.Time { return fixture.now },
	})
	if err != nil {
		t.Fatalf("new billing service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *billingFixture) createCommand(paid string, sourceIDs ...string) CreateBillingCommand {
	return CreateBillingCommand{
		Type:           domain.BillingTypeService,
		CustomerRef:    "cust-1",
		SourceOrderIDs: sourceIDs,
		PaidAmount:     dec(paid),
		Discount:       dec("5"),
		Tax:            dec("13"),
		Date:           f.now.Add(-24 * time.Hour),
	}
}

func decPtr(value string) *decimal.Decimal {
	parsed := dec(value)
	return &parsed
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}

func TestCreateBillingComputesTotalsAndStatus(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "10")

	result, err := fixture.svc.Create(context.Background(), fixture.createCommand("500", "so_1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	record := result.Record
	if record.Invoice != "INV-00001" {
		t.Fatalf("expected INV-00001, got %s", record.Invoice)
	}
	if record.ID != record.Invoice {
		t.Fatalf("expected record keyed by invoice, got %s", record.ID)
	}
	assertDecimal(t, "totalAmount", record.TotalAmount, "900")
	assertDecimal(t, "discountAmount", record.DiscountAmount, "45")
	assertDecimal(t, "taxableAmount", record.TaxableAmount, "855")
	assertDecimal(t, "taxAmount", record.TaxAmount, "111.15")
	assertDecimal(t, "finalTotal", record.FinalTotal, "966.15")
	assertDecimal(t, "totalPaid", record.TotalPaid, "500")
	if record.Status != domain.PaymentStatusPartial {
		t.Fatalf("expected partial status, got %s", record.Status)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}

	stored := fixture.serviceOrders.orders["so_1"]
	if stored.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected status propagated to source order, got %s", stored.PaymentStatus)
	}

	events := fixture.events.published()
	if len(events) != 1 || events[0].EventType != BillingEventCreated {
		t.Fatalf("expected one billing.created event, got %+v", events)
	}
	if events[0].Invoice != "INV-00001" || events[0].Status != string(domain.PaymentStatusPartial) {
		t.Fatalf("unexpected event payload %+v", events[0])
	}
}

func TestSecondBillingEventSettlesBalance(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "10")

	first, err := fixture.svc.Create(context.Background(), fixture.createCommand("500", "so_1"))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Record.Status != domain.PaymentStatusPartial {
		t.Fatalf("expected first event partial, got %s", first.Record.Status)
	}

	second, err := fixture.svc.Create(context.Background(), fixture.createCommand("466.15", "so_1"))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	assertDecimal(t, "totalPaid", second.Record.TotalPaid, "966.15")
	if second.Record.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected second event paid, got %s", second.Record.Status)
	}
	if second.Record.Invoice != "INV-00002" {
		t.Fatalf("expected INV-00002, got %s", second.Record.Invoice)
	}

	stored := fixture.serviceOrders.orders["so_1"]
	if stored.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected source order settled, got %s", stored.PaymentStatus)
	}
}

func TestCreateBillingMissingSourceAbortsWithoutWrites(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "0")

	_, err := fixture.svc.Create(context.Background(), fixture.createCommand("100", "so_1", "so_missing"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if fixture.billing.inserts != 0 {
		t.Fatalf("expected no billing insert, got %d", fixture.billing.inserts)
	}
	if len(fixture.serviceOrders.statusUpdates) != 0 {
		t.Fatalf("expected no status updates, got %v", fixture.serviceOrders.statusUpdates)
	}
	if len(fixture.events.published()) != 0 {
		t.Fatalf("expected no events, got %v", fixture.events.published())
	}
}

func TestCreateBillingValidation(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "0")

	cases := []struct {
		name   string
		mutate func(*CreateBillingCommand)
	}{
		{name: "negative paid amount", mutate: func(cmd *CreateBillingCommand) { cmd.PaidAmount = dec("-1") }},
		{name: "future date", mutate: func(cmd *CreateBillingCommand) { cmd.Date = fixture.now.Add(48 * time.Hour) }},
		{name: "zero date", mutate: func(cmd *CreateBillingCommand) { cmd.Date = time.Time{} }},
		{name: "unknown billing type", mutate: func(cmd *CreateBillingCommand) { cmd.Type = "warranty" }},
		{name: "blank customer", mutate: func(cmd *CreateBillingCommand) { cmd.CustomerRef = " " }},
		{name: "no sources", mutate: func(cmd *CreateBillingCommand) { cmd.SourceOrderIDs = nil }},
		{name: "discount above 100", mutate: func(cmd *CreateBillingCommand) { cmd.Discount = dec("101") }},
		{name: "negative tax", mutate: func(cmd *CreateBillingCommand) { cmd.Tax = dec("-1") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := fixture.createCommand("100", "so_1")
			tc.mutate(&cmd)
			if _, err := fixture.svc.Create(context.Background(), cmd); !errors.Is(err, ErrBillingInvalidInput) {
				t.Fatalf("expected ErrBillingInvalidInput, got %v", err)
			}
		})
	}
	if fixture.billing.inserts != 0 {
		t.Fatalf("expected no billing inserts, got %d", fixture.billing.inserts)
	}
}

func TestCreateBillingRejectsUnknownCustomerAndMismatch(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "0")
	seedServiceOrder(fixture.serviceOrders, "so_other", "cust-2", "500", "0")

	unknown := fixture.createCommand("0", "so_1")
	unknown.CustomerRef = "cust-unknown"
	if _, err := fixture.svc.Create(context.Background(), unknown); !errors.Is(err, ErrBillingCustomerNotFound) {
		t.Fatalf("expected ErrBillingCustomerNotFound, got %v", err)
	}

	mismatch := fixture.createCommand("0", "so_other")
	if _, err := fixture.svc.Create(context.Background(), mismatch); !errors.Is(err, ErrBillingCustomerMismatch) {
		t.Fatalf("expected ErrBillingCustomerMismatch, got %v", err)
	}
}

func TestCreateBillingReportsPropagationWarnings(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "0")
	seedServiceOrder(fixture.serviceOrders, "so_2", "cust-1", "500", "0")
	fixture.serviceOrders.updateErrFor["so_2"] = unavailableErr("write timeout")

	result, err := fixture.svc.Create(context.Background(), fixture.createCommand("100", "so_1", "so_2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
	if fixture.billing.inserts != 1 {
		t.Fatalf("expected billing record persisted despite warning, got %d inserts", fixture.billing.inserts)
	}

	events := fixture.events.published()
	if len(events) != 2 {
		t.Fatalf("expected propagation-failed and created events, got %+v", events)
	}
	if events[0].EventType != BillingEventPropagationFailed || events[1].EventType != BillingEventCreated {
		t.Fatalf("unexpected event order %+v", events)
	}
}

func TestUpdateBillingRecomputesAndExcludesOwnPayment(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "10")

	created, err := fixture.svc.Create(context.Background(), fixture.createCommand("966.15", "so_1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Record.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected paid after full payment, got %s", created.Record.Status)
	}

	// Edit the same record's payment downward: its own prior 966.15 must not
	// count, so the balance falls back to unpaid.
	updated, err := fixture.svc.Update(context.Background(), UpdateBillingCommand{
		BillingID:      created.Record.ID,
		Type:           domain.BillingTypeService,
		CustomerRef:    "cust-1",
		SourceOrderIDs: []string{"so_1"},
		PaidAmount:     decPtr("0"),
		Discount:       decPtr("5"),
		Tax:            decPtr("13"),
		Date:           timePtr(fixture.now.Add(-24 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertDecimal(t, "totalPaid", updated.Record.TotalPaid, "0")
	if updated.Record.Status != domain.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid after downward edit, got %s", updated.Record.Status)
	}
	if updated.Record.Invoice != created.Record.Invoice {
		t.Fatalf("expected invoice preserved on update, got %s", updated.Record.Invoice)
	}

	stored := fixture.serviceOrders.orders["so_1"]
	if stored.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("expected downgrade propagated, got %s", stored.PaymentStatus)
	}

	events := fixture.events.published()
	last := events[len(events)-1]
	if last.EventType != BillingEventUpdated {
		t.Fatalf("expected billing.updated event, got %s", last.EventType)
	}
}

func TestUpdateBillingKeepsStoredValuesWhenOmitted(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "10")

	created, err := fixture.svc.Create(context.Background(), fixture.createCommand("966.15", "so_1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Record.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected paid after full payment, got %s", created.Record.Status)
	}

	// Nothing optional supplied: the stored payment, percentages, and date
	// all carry forward and the record stays paid.
	updated, err := fixture.svc.Update(context.Background(), UpdateBillingCommand{
		BillingID:      created.Record.ID,
		Type:           domain.BillingTypeService,
		CustomerRef:    "cust-1",
		SourceOrderIDs: []string{"so_1"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertDecimal(t, "paidAmount", updated.Record.PaidAmount, "966.15")
	assertDecimal(t, "discount", updated.Record.Discount, "5")
	assertDecimal(t, "tax", updated.Record.Tax, "13")
	if !updated.Record.Date.Equal(created.Record.Date) {
		t.Fatalf("expected stored date kept, got %s", updated.Record.Date)
	}
	if updated.Record.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected paid status kept, got %s", updated.Record.Status)
	}

	// Editing only the discount must not zero the payment.
	reshaped, err := fixture.svc.Update(context.Background(), UpdateBillingCommand{
		BillingID:      created.Record.ID,
		Type:           domain.BillingTypeService,
		CustomerRef:    "cust-1",
		SourceOrderIDs: []string{"so_1"},
		Discount:       decPtr("0"),
	})
	if err != nil {
		t.Fatalf("update discount: %v", err)
	}
	assertDecimal(t, "paidAmount", reshaped.Record.PaidAmount, "966.15")
	assertDecimal(t, "finalTotal", reshaped.Record.FinalTotal, "1017")
	if reshaped.Record.Status != domain.PaymentStatusPartial {
		t.Fatalf("expected partial after discount removal, got %s", reshaped.Record.Status)
	}
}

func TestUpdateBillingGuardsIdentityFields(t *testing.T) {
	fixture := newBillingFixture(t)
	fixture.customers.customers["cust-2"] = domain.Customer{ID: "cust-2", Name: "Other"}
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "0")

	created, err := fixture.svc.Create(context.Background(), fixture.createCommand("100", "so_1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	base := UpdateBillingCommand{
		BillingID:      created.Record.ID,
		Type:           domain.BillingTypeService,
		CustomerRef:    "cust-1",
		SourceOrderIDs: []string{"so_1"},
		PaidAmount:     decPtr("100"),
		Discount:       decPtr("5"),
		Tax:            decPtr("13"),
		Date:           timePtr(fixture.now.Add(-24 * time.Hour)),
	}

	customerChange := base
	customerChange.CustomerRef = "cust-2"
	if _, err := fixture.svc.Update(context.Background(), customerChange); !errors.Is(err, ErrBillingCustomerMismatch) {
		t.Fatalf("expected ErrBillingCustomerMismatch, got %v", err)
	}

	typeChange := base
	typeChange.Type = domain.BillingTypePOS
	if _, err := fixture.svc.Update(context.Background(), typeChange); !errors.Is(err, ErrBillingInvalidInput) {
		t.Fatalf("expected ErrBillingInvalidInput for type change, got %v", err)
	}

	missing := base
	missing.BillingID = "INV-99999"
	if _, err := fixture.svc.Update(context.Background(), missing); !errors.Is(err, ErrBillingNotFound) {
		t.Fatalf("expected ErrBillingNotFound, got %v", err)
	}
}

func TestDeleteBillingLeavesSourceStatuses(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "10")

	created, err := fixture.svc.Create(context.Background(), fixture.createCommand("966.15", "so_1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fixture.serviceOrders.orders["so_1"].PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected source paid before delete")
	}
	updatesBefore := len(fixture.serviceOrders.statusUpdates)

	if err := fixture.svc.Delete(context.Background(), created.Record.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := fixture.svc.Get(context.Background(), created.Record.ID); !errors.Is(err, ErrBillingNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if fixture.serviceOrders.orders["so_1"].PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected source status untouched by delete, got %s", fixture.serviceOrders.orders["so_1"].PaymentStatus)
	}
	if len(fixture.serviceOrders.statusUpdates) != updatesBefore {
		t.Fatalf("expected no further status updates on delete")
	}

	events := fixture.events.published()
	last := events[len(events)-1]
	if last.EventType != BillingEventDeleted {
		t.Fatalf("expected billing.deleted event, got %s", last.EventType)
	}
}

func TestDeleteBillingUnknownRecord(t *testing.T) {
	fixture := newBillingFixture(t)
	if err := fixture.svc.Delete(context.Background(), "INV-00042"); !errors.Is(err, ErrBillingNotFound) {
		t.Fatalf("expected ErrBillingNotFound, got %v", err)
	}
}

func TestCreateBillingSurvivesEventPublishFailure(t *testing.T) {
	fixture := newBillingFixture(t)
	seedServiceOrder(fixture.serviceOrders, "so_1", "cust-1", "1000", "0")
	fixture.events.err = errors.New("broker unreachable")

	result, err := fixture.svc.Create(context.Background(), fixture.createCommand("100", "so_1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Record.Invoice == "" {
		t.Fatalf("expected record persisted despite publish failure")
	}
}
