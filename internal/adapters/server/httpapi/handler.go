// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// routeMethods lists the methods probed when building an Allow header.
var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	ledger   common.LedgerService
	catalog  common.CatalogService
	activity common.ActivityService
	router   chi.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter. Activity is optional; middlewares run inside the router
// so they observe matched route patterns.
func NewHandler(
	ledger common.LedgerService,
	catalog common.CatalogService,
	activity common.ActivityService,
	middlewares ...func(http.Handler) http.Handler,
) *Handler {
	h := &Handler{
		ledger:   ledger,
		catalog:  catalog,
		activity: activity,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middlewares...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	r.MethodNotAllowed(h.handleMethodNotAllowed)

	r.Route("/transactions", func(r chi.Router) {
		r.Use(h.requireLedger)
		r.Get("/", h.handleListTransactions)
		r.Post("/", h.handleRecordTransaction)
		r.Get("/{id}", h.handleGetTransaction)
		r.Put("/{id}", h.handleAmendTransaction)
		r.Delete("/{id}", h.handleRemoveTransaction)
	})
	r.With(h.requireLedger).Get("/inventory", h.handleInventory)
	r.Route("/reports", func(r chi.Router) {
		r.Use(h.requireLedger)
		r.Get("/range", h.handleRangeReport)
		r.Get("/monthly", h.handleMonthlySummary)
		r.Get("/recent", h.handleRecentTransactions)
	})
	r.Route("/items", func(r chi.Router) {
		r.Use(h.requireCatalog)
		r.Get("/", h.handleListItems)
		r.Post("/", h.handleAddItem)
		r.Get("/low", h.handleLowStockItems)
		r.Get("/critical", h.handleCriticalStockItems)
		r.Get("/search", h.handleSearchItems)
		r.Get("/{id}", h.handleGetItem)
		r.Patch("/{id}", h.handleUpdateItem)
		r.Delete("/{id}", h.handleDeleteItem)
	})
	r.With(h.requireCatalog).Get("/dashboard", h.handleDashboard)
	r.Get("/activity", h.handleListActivity)

	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// requireLedger fails closed when no ledger service is configured.
func (h *Handler) requireLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.ledger == nil {
			writeJSONError(w, http.StatusServiceUnavailable, APIError{
				Code:    "service_unavailable",
				Message: "ledger service is not configured",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCatalog fails closed when no catalog service is configured.
func (h *Handler) requireCatalog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.catalog == nil {
			writeJSONError(w, http.StatusServiceUnavailable, APIError{
				Code:    "service_unavailable",
				Message: "catalog service is not configured",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleMethodNotAllowed reports the methods registered for the requested path.
func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	allowed := make([]string, 0, len(routeMethods))
	for _, method := range routeMethods {
		if h.router.Match(chi.NewRouteContext(), method, r.URL.Path) {
			allowed = append(allowed, method)
		}
	}
	writeMethodNotAllowed(w, allowed...)
}

// handleListTransactions serves GET `/transactions`.
func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.ListTransactions(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
	})
}

// handleRecordTransaction serves POST `/transactions`.
func (h *Handler) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tx, err := h.ledger.RecordTransaction(r.Context(), in)
	if err != nil {
		writeMutationError(w, err, tx.ID)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// handleGetTransaction serves GET `/transactions/{id}`.
func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleAmendTransaction serves PUT `/transactions/{id}`.
func (h *Handler) handleAmendTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in domain.TransactionInput
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tx, err := h.ledger.AmendTransaction(r.Context(), id, in)
	if err != nil {
		writeMutationError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleRemoveTransaction serves DELETE `/transactions/{id}`.
func (h *Handler) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := h.ledger.RemoveTransaction(r.Context(), id)
	if err != nil {
		writeMutationError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleInventory serves GET `/inventory`.
func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.Inventory(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
	})
}

// handleRangeReport serves GET `/reports/range`.
func (h *Handler) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.TransactionsInRange(r.Context(), common.RangeRequest{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleMonthlySummary serves GET `/reports/monthly`.
func (h *Handler) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.MonthlySummary(r.Context(), common.MonthlyRequest{
		Month: r.URL.Query().Get("month"),
		Year:  r.URL.Query().Get("year"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRecentTransactions serves GET `/reports/recent`.
func (h *Handler) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	txs, err := h.ledger.RecentTransactions(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
	})
}

// handleListItems serves GET `/items`.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, common.ItemListRequest{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	})
}

// handleSearchItems serves GET `/items/search`.
func (h *Handler) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "q is required",
		})
		return
	}
	h.listItems(w, r, common.ItemListRequest{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Query:    query,
	})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request, req common.ItemListRequest) {
	items, err := h.catalog.ListItems(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handleAddItem serves POST `/items`.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var in domain.ItemInput
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.catalog.AddItem(r.Context(), in)
	if err != nil {
		writeMutationError(w, err, item.ID)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleGetItem serves GET `/items/{id}`.
func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleUpdateItem serves PATCH `/items/{id}`.
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch domain.ItemPatch
	if err := decodeJSONBody(r.Context(), w, r, &patch); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.catalog.UpdateItem(r.Context(), id, patch)
	if err != nil {
		writeMutationError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem serves DELETE `/items/{id}`.
func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.DeleteItem(r.Context(), id); err != nil {
		writeMutationError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLowStockItems serves GET `/items/low`.
func (h *Handler) handleLowStockItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.LowStockItems(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handleCriticalStockItems serves GET `/items/critical`.
func (h *Handler) handleCriticalStockItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.CriticalStockItems(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handleDashboard serves GET `/dashboard`.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.catalog.Dashboard(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// handleListActivity serves GET `/activity`.
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if h.activity == nil {
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: "activity APIs are not available",
		})
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	events, err := h.activity.ListActivity(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// parseLimit parses an optional non-negative limit query value. Zero selects the service default.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer: %w", common.ErrInvalidRequest)
	}
	return limit, nil
}

// writeMutationError maps a failed write, naming the affected id when persistence failed after apply.
func writeMutationError(w http.ResponseWriter, err error, id string) {
	if errors.Is(err, common.ErrPersist) {
		apiErr := APIError{
			Code:    "persist_failed",
			Message: err.Error(),
			Hint:    "The change is applied in memory but was not stored; the next successful write persists it.",
		}
		if strings.TrimSpace(id) != "" {
			apiErr.Context = map[string]any{"id": id}
		}
		writeJSONError(w, http.StatusInternalServerError, apiErr)
		return
	}
	writeErrorFrom(w, err)
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		apiErr := APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		}
		if fields := common.FieldErrors(err); len(fields) > 0 {
			apiErr.Context = map[string]any{"fields": fields}
		}
		writeJSONError(w, http.StatusBadRequest, apiErr)
	case errors.Is(err, common.ErrPersist):
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "persist_failed",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrActivityUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
