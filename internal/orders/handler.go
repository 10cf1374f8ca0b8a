package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/printer"
)

// Printer renders an order for an area's device. It never fails; an
// unavailable device yields a simulated result.
type Printer interface {
	Print(ctx context.Context, area printer.Area, order domain.Order, paymentMethod string) printer.Result
}

type Handler struct {
	service *Service
	printer Printer
	logger  *slog.Logger
}

func NewHandler(service *Service, printer Printer, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		printer: printer,
		logger:  logger,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to create order")
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get order", "id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: domain.OrderStatus(r.URL.Query().Get("status"))}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Transition(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, err, "failed to update order status", "id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if !decodeOptional(r, &req) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.writeServiceError(w, err, "failed to cancel order", "id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type finalizeRequest struct {
	PaymentMethod string `json:"payment_method"`
	PrintReceipt  bool   `json:"print_receipt"`
}

type finalizeResponse struct {
	Order   *domain.Order   `json:"order"`
	Receipt *printer.Result `json:"receipt,omitempty"`
}

// HandleFinalize delivers the order and, when asked, prints the receipt
// once the transition has committed.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req finalizeRequest
	if !decodeOptional(r, &req) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Finalize(r.Context(), id, req.PaymentMethod)
	if err != nil {
		h.writeServiceError(w, err, "failed to finalize order", "id", id)
		return
	}

	resp := finalizeResponse{Order: order}
	if req.PrintReceipt && h.printer != nil {
		result := h.printer.Print(r.Context(), printer.AreaCashier, *order, order.PaymentMethod)
		resp.Receipt = &result
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type printRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) HandlePrint(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	area, err := printer.ParseArea(r.PathValue("area"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req printRequest
	if !decodeOptional(r, &req) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get order", "id", id)
		return
	}

	if h.printer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "printing is not configured")
		return
	}

	payment := req.PaymentMethod
	if payment == "" {
		payment = order.PaymentMethod
	}

	result := h.printer.Print(r.Context(), area, *order, payment)
	h.logger.Info("order printed", "order_id", id, "area", area, "simulated", result.Simulated)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.Tables(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list tables")
		return
	}

	h.writeJSON(w, http.StatusOK, tables)
}

func (h *Handler) HandleReserveTable(w http.ResponseWriter, r *http.Request) {
	number, ok := h.tableNumber(w, r)
	if !ok {
		return
	}

	table, err := h.service.ReserveTable(r.Context(), number)
	if err != nil {
		h.writeServiceError(w, err, "failed to reserve table", "table", number)
		return
	}

	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) HandleReleaseReservation(w http.ResponseWriter, r *http.Request) {
	number, ok := h.tableNumber(w, r)
	if !ok {
		return
	}

	table, err := h.service.ReleaseReservation(r.Context(), number)
	if err != nil {
		h.writeServiceError(w, err, "failed to release reservation", "table", number)
		return
	}

	h.writeJSON(w, http.StatusOK, table)
}

// decodeOptional decodes a JSON body that callers may omit entirely.
func decodeOptional(r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	return err == nil || errors.Is(err, io.EOF)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *Handler) tableNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid table number")
		return 0, false
	}
	return number, true
}

// writeServiceError maps the domain error taxonomy onto 4xx responses and
// logs anything else as an internal failure.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
