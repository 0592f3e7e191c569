package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/bizledger/api/internal/domain"
	"github.com/bizledger/api/internal/platform/httpx"
	"github.com/bizledger/api/internal/platform/pagination"
	"github.com/bizledger/api/internal/services"
)

const (
	maxBillingBodySize     = 64 * 1024
	defaultBillingPageSize = 50
	maxBillingPageSize     = 100
)

type billingRequest struct {
	Type           string          `json:"type"`
	CustomerID     string          `json:"customer_id"`
	SourceOrderIDs []string        `json:"source_order_ids"`
	PaidAmount     json.RawMessage `json:"paid_amount"`
	Discount       json.RawMessage `json:"discount"`
	Tax            json.RawMessage `json:"tax"`
	Date           string          `json:"date"`
}

type billingSourcePayload struct {
	SourceOrderID string `json:"source_order_id"`
	OrderNumber   string `json:"order_number"`
	OrderID       string `json:"order_id"`
}

type billingPayload struct {
	ID             string                 `json:"id"`
	Invoice        string                 `json:"invoice"`
	Date           string                 `json:"date"`
	CustomerID     string                 `json:"customer_id"`
	Type           string                 `json:"type"`
	Sources        []billingSourcePayload `json:"sources"`
	SourceOrderIDs []string               `json:"source_order_ids"`
	PaidAmount     string                 `json:"paid_amount"`
	TotalPaid      string                 `json:"total_paid"`
	TotalAmount    string                 `json:"total_amount"`
	Discount       string                 `json:"discount"`
	DiscountAmount string                 `json:"discount_amount"`
	TaxableAmount  string                 `json:"taxable_amount"`
	Tax            string                 `json:"tax"`
	TaxAmount      string                 `json:"tax_amount"`
	FinalTotal     string                 `json:"final_total"`
	Status         string                 `json:"status"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
}

type billingResponse struct {
	Billing  billingPayload `json:"billing"`
	Warnings []string       `json:"warnings,omitempty"`
}

type billingListResponse struct {
	Items         []billingPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// BillingHandlers exposes the billing record lifecycle endpoints.
type BillingHandlers struct {
	billing services.BillingService
}

// NewBillingHandlers constructs a new BillingHandlers instance.
func NewBillingHandlers(billing services.BillingService) *BillingHandlers {
	return &BillingHandlers{billing: billing}
}

// Routes registers the /billing endpoints.
func (h *BillingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createBilling)
	r.Get("/", h.listBilling)
	r.Get("/{billingID}", h.getBilling)
	r.Put("/{billingID}", h.updateBilling)
	r.Delete("/{billingID}", h.deleteBilling)
}

func (h *BillingHandlers) createBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.billing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("billing_service_unavailable", "billing service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req billingRequest
	if !decodeJSONBody(ctx, w, r, maxBillingBodySize, &req) {
		return
	}
	cmd, ok := h.buildCommand(ctx, w, req)
	if !ok {
		return
	}

	result, err := h.billing.Create(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, billingResponse{
		Billing:  buildBillingPayload(result.Record),
		Warnings: result.Warnings,
	})
}

func (h *BillingHandlers) listBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.billing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("billing_service_unavailable", "billing service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultBillingPageSize,
		MaxPageSize:     maxBillingPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	filter := services.BillingListFilter{
		CustomerRef:   strings.TrimSpace(query.Get("customer_id")),
		SourceOrderID: strings.TrimSpace(query.Get("source_order_id")),
		Status:        parseFilterValues(query["status"]),
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}

	if raw := strings.TrimSpace(query.Get("date_from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_from must be an ISO-8601 date", http.StatusBadRequest))
			return
		}
		filter.DateFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("date_to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_to must be an ISO-8601 date", http.StatusBadRequest))
			return
		}
		filter.DateTo = &ts
	}

	page, err := h.billing.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]billingPayload, 0, len(page.Items))
	for _, record := range page.Items {
		items = append(items, buildBillingPayload(record))
	}
	writeJSONResponse(w, http.StatusOK, billingListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *BillingHandlers) getBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.billing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("billing_service_unavailable", "billing service unavailable", http.StatusServiceUnavailable))
		return
	}

	billingID := strings.TrimSpace(chi.URLParam(r, "billingID"))
	if billingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "billing id is required", http.StatusBadRequest))
		return
	}

	record, err := h.billing.Get(ctx, billingID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, billingResponse{Billing: buildBillingPayload(record)})
}

func (h *BillingHandlers) updateBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.billing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("billing_service_unavailable", "billing service unavailable", http.StatusServiceUnavailable))
		return
	}

	billingID := strings.TrimSpace(chi.URLParam(r, "billingID"))
	if billingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "billing id is required", http.StatusBadRequest))
		return
	}

	var req billingRequest
	if !decodeJSONBody(ctx, w, r, maxBillingBodySize, &req) {
		return
	}
	cmd, ok := h.buildUpdateCommand(ctx, w, billingID, req)
	if !ok {
		return
	}

	result, err := h.billing.Update(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, billingResponse{
		Billing:  buildBillingPayload(result.Record),
		Warnings: result.Warnings,
	})
}

func (h *BillingHandlers) deleteBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.billing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("billing_service_unavailable", "billing service unavailable", http.StatusServiceUnavailable))
		return
	}

	billingID := strings.TrimSpace(chi.URLParam(r, "billingID"))
	if billingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "billing id is required", http.StatusBadRequest))
		return
	}

	if err := h.billing.Delete(ctx, billingID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BillingHandlers) buildCommand(ctx context.Context, w http.ResponseWriter, req billingRequest) (services.CreateBillingCommand, bool) {
	billingType := domain.BillingType(strings.TrimSpace(req.Type))
	switch billingType {
	case domain.BillingTypeService, domain.BillingTypePOS:
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "type must be service or pos", http.StatusBadRequest))
		return services.CreateBillingCommand{}, false
	}

	paid, err := parseAmountField(req.PaidAmount, "paid_amount", false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.CreateBillingCommand{}, false
	}
	discount, err := parseAmountField(req.Discount, "discount", false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.CreateBillingCommand{}, false
	}
	tax, err := parseAmountField(req.Tax, "tax", false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.CreateBillingCommand{}, false
	}

	date, err := parseTimeParam(req.Date)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be an ISO-8601 date", http.StatusBadRequest))
		return services.CreateBillingCommand{}, false
	}
	if date.After(time.Now().UTC()) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must not be in the future", http.StatusBadRequest))
		return services.CreateBillingCommand{}, false
	}

	return services.CreateBillingCommand{
		Type:           billingType,
		CustomerRef:    strings.TrimSpace(req.CustomerID),
		SourceOrderIDs: req.SourceOrderIDs,
		PaidAmount:     paid,
		Discount:       discount,
		Tax:            tax,
		Date:           date,
	}, true
}

// buildUpdateCommand keeps absent amount and date fields as nil so the
// service can carry the stored values forward.
func (h *BillingHandlers) buildUpdateCommand(ctx context.Context, w http.ResponseWriter, billingID string, req billingRequest) (services.UpdateBillingCommand, bool) {
	billingType := domain.BillingType(strings.TrimSpace(req.Type))
	switch billingType {
	case domain.BillingTypeService, domain.BillingTypePOS:
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "type must be service or pos", http.StatusBadRequest))
		return services.UpdateBillingCommand{}, false
	}

	cmd := services.UpdateBillingCommand{
		BillingID:      billingID,
		Type:           billingType,
		CustomerRef:    strings.TrimSpace(req.CustomerID),
		SourceOrderIDs: req.SourceOrderIDs,
	}

	paid, err := parseOptionalAmountField(req.PaidAmount, "paid_amount", false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.UpdateBillingCommand{}, false
	}
	cmd.PaidAmount = paid

	discount, err := parseOptionalAmountField(req.Discount, "discount", false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.UpdateBillingCommand{}, false
	}
	cmd.Discount = discount

	tax, err := parseOptionalAmountField(req.Tax, "tax", false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.UpdateBillingCommand{}, false
	}
	cmd.Tax = tax

	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be an ISO-8601 date", http.StatusBadRequest))
			return services.UpdateBillingCommand{}, false
		}
		if date.After(time.Now().UTC()) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must not be in the future", http.StatusBadRequest))
			return services.UpdateBillingCommand{}, false
		}
		cmd.Date = &date
	}

	return cmd, true
}

func buildBillingPayload(record domain.BillingRecord) billingPayload {
	sources := make([]billingSourcePayload, 0, len(record.Sources))
	for _, source := range record.Sources {
		sources = append(sources, billingSourcePayload{
			SourceOrderID: source.SourceOrderRef,
			OrderNumber:   source.OrderNumber,
			OrderID:       source.OrderRef,
		})
	}
	return billingPayload{
		ID:             record.ID,
		Invoice:        record.Invoice,
		Date:           record.Date.UTC().Format(time.RFC3339),
		CustomerID:     record.CustomerRef,
		Type:           string(record.Type),
		Sources:        sources,
		SourceOrderIDs: record.SourceOrderIDs,
		PaidAmount:     record.PaidAmount.String(),
		TotalPaid:      record.TotalPaid.String(),
		TotalAmount:    record.TotalAmount.String(),
		Discount:       record.Discount.String(),
		DiscountAmount: record.DiscountAmount.String(),
		TaxableAmount:  record.TaxableAmount.String(),
		Tax:            record.Tax.String(),
		TaxAmount:      record.TaxAmount.String(),
		FinalTotal:     record.FinalTotal.String(),
		Status:         string(record.Status),
		CreatedAt:      record.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      record.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
