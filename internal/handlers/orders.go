package handlers

import (
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
	maxOrderBodySize     = 64 * 1024
	defaultOrderPageSize = 50
	maxOrderPageSize     = 100
)

type createOrderRequest struct {
	Kind       string             `json:"kind"`
	CustomerID string             `json:"customer_id"`
	Date       string             `json:"date"`
	Service    *serviceOrderInput `json:"service,omitempty"`
	POS        *posOrderInput     `json:"pos,omitempty"`
}

type serviceOrderInput struct {
	ServiceID string          `json:"service_id"`
	Discount  json.RawMessage `json:"discount"`
	Remarks   string          `json:"remarks"`
}

type posOrderInput struct {
	Items    []posLineInput  `json:"items"`
	Discount json.RawMessage `json:"discount"`
}

type posLineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	CustomerID  string `json:"customer_id"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type orderResponse struct {
	Order         orderPayload `json:"order"`
	SourceOrderID string       `json:"source_order_id,omitempty"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// OrderHandlers exposes the order identity endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	kind := domain.OrderKind(strings.TrimSpace(req.Kind))
	switch kind {
	case domain.OrderKindService, domain.OrderKindInstallation, domain.OrderKindPOS:
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "kind must be service, installation, or pos", http.StatusBadRequest))
		return
	}

	var date time.Time
	if raw := strings.TrimSpace(req.Date); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be an ISO-8601 date", http.StatusBadRequest))
			return
		}
		if parsed.After(time.Now().UTC()) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must not be in the future", http.StatusBadRequest))
			return
		}
		date = parsed
	}

	cmd := services.CreateOrderCommand{
		Kind:        kind,
		CustomerRef: strings.TrimSpace(req.CustomerID),
		Date:        date,
	}

	if req.Service != nil {
		discount, err := parseAmountField(req.Service.Discount, "discount", false)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		cmd.Service = &services.ServiceOrderInput{
			ServiceRef: strings.TrimSpace(req.Service.ServiceID),
			Discount:   discount,
			Remarks:    req.Service.Remarks,
		}
	}
	if req.POS != nil {
		discount, err := parseAmountField(req.POS.Discount, "discount", false)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		items := make([]services.POSLineInput, 0, len(req.POS.Items))
		for _, line := range req.POS.Items {
			if line.Quantity <= 0 {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be positive", http.StatusBadRequest))
				return
			}
			items = append(items, services.POSLineInput{
				ProductRef: strings.TrimSpace(line.ProductID),
				Quantity:   line.Quantity,
			})
		}
		cmd.POS = &services.POSOrderInput{Items: items, Discount: discount}
	}

	creation, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{
		Order:         buildOrderPayload(creation.Order),
		SourceOrderID: creation.SourceOrderID,
	})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		CustomerRef: strings.TrimSpace(query.Get("customer_id")),
		Kind:        parseFilterValues(query["kind"]),
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

	page, err := h.orders.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func buildOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerRef,
		Kind:        string(order.Kind),
		Date:        order.Date.UTC().Format(time.RFC3339),
		CreatedAt:   order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
