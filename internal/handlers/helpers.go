package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bizledger/api/internal/platform/httpx"
	"github.com/bizledger/api/internal/services"
)

var errBodyTooLarge = errors.New("request body too large")

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// parseTimeParam accepts RFC3339 timestamps or bare dates.
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func parseFilterValues(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// parseAmountField parses a JSON string or bare number into a decimal,
// treating an absent or null field as zero and rejecting anything negative
// when allowNegative is false.
func parseAmountField(raw json.RawMessage, field string, allowNegative bool) (decimal.Decimal, error) {
	value, err := parseOptionalAmountField(raw, field, allowNegative)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if value == nil {
		return decimal.Zero, nil
	}
	return *value, nil
}

// parseOptionalAmountField is parseAmountField for fields where absence is
// meaningful: it returns nil when the field is omitted or null.
func parseOptionalAmountField(raw json.RawMessage, field string, allowNegative bool) (*decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, `"`)
	if text == "" || text == "null" {
		return nil, nil
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return nil, errors.New(field + " must be a decimal number")
	}
	if !allowNegative && value.IsNegative() {
		return nil, errors.New(field + " must not be negative")
	}
	return &value, nil
}

// writeServiceError maps service sentinels onto the canonical error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrBillingInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrOrderInvalidKind),
		errors.Is(err, services.ErrCustomerInvalidInput),
		errors.Is(err, services.ErrMoneyInvalidInput),
		errors.Is(err, services.ErrSourceInvalidInput),
		errors.Is(err, services.ErrLedgerInvalidInput),
		errors.Is(err, services.ErrSequenceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSourceNotFound):
		// A missing source on create/update is a client mistake naming the id.
		httpx.WriteError(ctx, w, httpx.NewError("source_order_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBillingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("billing_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrBillingCustomerNotFound),
		errors.Is(err, services.ErrOrderCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("customer_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_entry_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBillingCustomerMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("customer_mismatch", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderMintExhausted),
		errors.Is(err, services.ErrSequenceExhausted):
		httpx.WriteError(ctx, w, httpx.NewError("identifier_allocation_failed", err.Error(), http.StatusInternalServerError))
	case errors.Is(err, services.ErrStorageUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}
