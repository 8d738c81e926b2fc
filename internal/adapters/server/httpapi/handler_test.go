package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
)

// stubLedgerService provides deterministic ledger responses for handler tests.
type stubLedgerService struct {
	txs       []domain.Transaction
	inventory []domain.InventoryEntry
	summary   domain.MonthlySummary
	err       error

	lastInput   domain.TransactionInput
	lastID      string
	lastRange   common.RangeRequest
	lastMonthly common.MonthlyRequest
	lastLimit   int
}

func (s *stubLedgerService) RecordTransaction(_ context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	s.lastInput = in
	tx := domain.BuildTransaction("TXN005", in)
	return tx, s.err
}

func (s *stubLedgerService) AmendTransaction(_ context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	s.lastID = id
	s.lastInput = in
	if s.err != nil {
		return domain.Transaction{}, s.err
	}
	return domain.BuildTransaction(id, in), nil
}

func (s *stubLedgerService) RemoveTransaction(_ context.Context, id string) (domain.Transaction, error) {
	s.lastID = id
	if s.err != nil {
		return domain.Transaction{}, s.err
	}
	return domain.Transaction{ID: id}, nil
}

func (s *stubLedgerService) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	s.lastID = id
	if s.err != nil {
		return domain.Transaction{}, s.err
	}
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, errors.Join(common.ErrNotFound, errors.New("transaction "+id))
}

func (s *stubLedgerService) ListTransactions(context.Context) ([]domain.Transaction, error) {
	return s.txs, s.err
}

func (s *stubLedgerService) Inventory(context.Context) ([]domain.InventoryEntry, error) {
	return s.inventory, s.err
}

func (s *stubLedgerService) TransactionsInRange(_ context.Context, in common.RangeRequest) (common.RangeReport, error) {
	s.lastRange = in
	if s.err != nil {
		return common.RangeReport{}, s.err
	}
	return common.RangeReport{Start: in.Start, End: in.End, Count: len(s.txs), Transactions: s.txs}, nil
}

func (s *stubLedgerService) MonthlySummary(_ context.Context, in common.MonthlyRequest) (domain.MonthlySummary, error) {
	s.lastMonthly = in
	return s.summary, s.err
}

func (s *stubLedgerService) RecentTransactions(_ context.Context, limit int) ([]domain.Transaction, error) {
	s.lastLimit = limit
	return s.txs, s.err
}

// stubCatalogService provides deterministic catalog responses for handler tests.
type stubCatalogService struct {
	items []domain.Item
	err   error

	lastList  common.ItemListRequest
	lastInput domain.ItemInput
	lastPatch domain.ItemPatch
	lastID    string
}

func (s *stubCatalogService) ListItems(_ context.Context, in common.ItemListRequest) ([]domain.Item, error) {
	s.lastList = in
	return s.items, s.err
}

func (s *stubCatalogService) GetItem(_ context.Context, id string) (domain.Item, error) {
	s.lastID = id
	if s.err != nil {
		return domain.Item{}, s.err
	}
	return domain.Item{ID: id}, nil
}

func (s *stubCatalogService) AddItem(_ context.Context, in domain.ItemInput) (domain.Item, error) {
	s.lastInput = in
	if s.err != nil {
		return domain.Item{}, s.err
	}
	return domain.Item{ID: "WH005", Name: in.Name, Category: in.Category, Stock: in.Stock, MinStock: in.MinStock}, nil
}

func (s *stubCatalogService) UpdateItem(_ context.Context, id string, patch domain.ItemPatch) (domain.Item, error) {
	s.lastID = id
	s.lastPatch = patch
	if s.err != nil {
		return domain.Item{}, s.err
	}
	return domain.Item{ID: id}, nil
}

func (s *stubCatalogService) DeleteItem(_ context.Context, id string) error {
	s.lastID = id
	return s.err
}

func (s *stubCatalogService) LowStockItems(context.Context) ([]domain.Item, error) {
	return s.items, s.err
}

func (s *stubCatalogService) CriticalStockItems(context.Context) ([]domain.Item, error) {
	return nil, s.err
}

func (s *stubCatalogService) Dashboard(context.Context) (app.Dashboard, error) {
	return app.Dashboard{CatalogStats: app.CatalogStats{TotalItems: len(s.items)}}, s.err
}

// stubActivityService records requested limits.
type stubActivityService struct {
	events    []domain.ChangeEvent
	lastLimit int
}

func (s *stubActivityService) ListActivity(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	s.lastLimit = limit
	return s.events, nil
}

// serve runs one request through the handler and returns the recorder.
func serve(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeBody decodes one JSON response body into T.
func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// decodeErrorEnvelope decodes one structured API error response from the recorder body.
func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	return decodeBody[ErrorEnvelope](t, rec)
}

func seedTransactions() []domain.Transaction {
	return domain.SeedTransactions()
}

// TestHandlerTransactionEndpoints verifies record, get, amend, and remove wiring.
func TestHandlerTransactionEndpoints(t *testing.T) {
	ledger := &stubLedgerService{txs: seedTransactions()}
	handler := NewHandler(ledger, &stubCatalogService{}, nil)

	rec := serve(t, handler, http.MethodPost, "/transactions",
		`{"type":"out","item":"Kabel XLPE 150mm","quantity":5,"date":"2024-01-16","operator":"Rina"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d, want %d", rec.Code, http.StatusCreated)
	}
	created := decodeBody[domain.Transaction](t, rec)
	if created.ID != "TXN005" || created.Direction != domain.DirectionOut {
		t.Fatalf("unexpected created transaction %#v", created)
	}
	if ledger.lastInput.Quantity != 5 || ledger.lastInput.Date != "2024-01-16" {
		t.Fatalf("unexpected decoded input %#v", ledger.lastInput)
	}

	rec = serve(t, handler, http.MethodGet, "/transactions/TXN002", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeBody[domain.Transaction](t, rec); got.ID != "TXN002" {
		t.Fatalf("get id = %q, want TXN002", got.ID)
	}

	rec = serve(t, handler, http.MethodPut, "/transactions/TXN003",
		`{"type":"in","item":"Trafo Distribusi 400kVA","quantity":1,"date":"2024-01-14"}`)
	if rec.Code != http.StatusOK || ledger.lastID != "TXN003" {
		t.Fatalf("amend status = %d id = %q", rec.Code, ledger.lastID)
	}

	rec = serve(t, handler, http.MethodDelete, "/transactions/TXN001", "")
	if rec.Code != http.StatusOK || ledger.lastID != "TXN001" {
		t.Fatalf("remove status = %d id = %q", rec.Code, ledger.lastID)
	}

	rec = serve(t, handler, http.MethodGet, "/transactions", "")
	listed := decodeBody[struct {
		Transactions []domain.Transaction `json:"transactions"`
	}](t, rec)
	if len(listed.Transactions) != 4 {
		t.Fatalf("expected 4 listed transactions, got %d", len(listed.Transactions))
	}
}

// TestHandlerRejectsMalformedBodies verifies strict body decoding.
func TestHandlerRejectsMalformedBodies(t *testing.T) {
	handler := NewHandler(&stubLedgerService{}, &stubCatalogService{}, nil)

	cases := map[string]string{
		"unknown field":    `{"type":"in","item":"A","quantity":1,"date":"2024-01-01","colour":"red"}`,
		"trailing content": `{"type":"in","item":"A","quantity":1,"date":"2024-01-01"} {}`,
		"wrong type":       `{"type":"in","item":"A","quantity":"many","date":"2024-01-01"}`,
		"not json":         `type=in`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, handler, http.MethodPost, "/transactions", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if envelope := decodeErrorEnvelope(t, rec); envelope.Error.Code != "invalid_request" {
				t.Fatalf("error.code = %q, want invalid_request", envelope.Error.Code)
			}
		})
	}
}

// TestHandlerErrorMapping verifies adapter errors map to status codes and envelopes.
func TestHandlerErrorMapping(t *testing.T) {
	validation := &app.ValidationError{Fields: map[string]string{"quantity": "must be at least 0"}}

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        errors.Join(common.ErrNotFound, errors.New("transaction TXN999")),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "validation",
			err:        errors.Join(common.ErrInvalidRequest, validation),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "persist failure",
			err:        errors.Join(common.ErrPersist, errors.New("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "persist_failed",
		},
		{
			name:       "internal failure",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(&stubLedgerService{err: tt.err}, &stubCatalogService{}, nil)
			rec := serve(t, handler, http.MethodPut, "/transactions/TXN001",
				`{"type":"in","item":"A","quantity":-1,"date":"2024-01-01"}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			envelope := decodeErrorEnvelope(t, rec)
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("error.code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
			switch tt.wantCode {
			case "invalid_request":
				fields, _ := envelope.Error.Context["fields"].(map[string]any)
				if fields["quantity"] != "must be at least 0" {
					t.Fatalf("expected quantity field context, got %#v", envelope.Error.Context)
				}
			case "persist_failed":
				if envelope.Error.Context["id"] != "TXN001" || envelope.Error.Hint == "" {
					t.Fatalf("expected persist context and hint, got %#v", envelope.Error)
				}
			}
		})
	}
}

// TestHandlerReportEndpoints verifies query parameters reach the ledger service.
func TestHandlerReportEndpoints(t *testing.T) {
	ledger := &stubLedgerService{
		txs:     seedTransactions()[:2],
		summary: domain.MonthlySummary{Month: 1, Year: 2024, TotalIn: 22, TotalOut: 8, NetChange: 14},
		inventory: []domain.InventoryEntry{
			{ItemName: "Kabel XLPE 150mm", CurrentStock: 25, LastUpdated: "2024-01-15", TotalIn: 25},
		},
	}
	handler := NewHandler(ledger, &stubCatalogService{}, nil)

	rec := serve(t, handler, http.MethodGet, "/reports/range?start=2024-01-13&end=2024-01-14", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("range status = %d", rec.Code)
	}
	if ledger.lastRange.Start != "2024-01-13" || ledger.lastRange.End != "2024-01-14" {
		t.Fatalf("unexpected range request %#v", ledger.lastRange)
	}
	if report := decodeBody[common.RangeReport](t, rec); report.Count != 2 {
		t.Fatalf("range count = %d, want 2", report.Count)
	}

	rec = serve(t, handler, http.MethodGet, "/reports/monthly?month=1&year=2024", "")
	summary := decodeBody[domain.MonthlySummary](t, rec)
	if summary.NetChange != 14 || ledger.lastMonthly.Month != "1" || ledger.lastMonthly.Year != "2024" {
		t.Fatalf("unexpected monthly summary %#v from %#v", summary, ledger.lastMonthly)
	}

	rec = serve(t, handler, http.MethodGet, "/reports/recent?limit=2", "")
	if rec.Code != http.StatusOK || ledger.lastLimit != 2 {
		t.Fatalf("recent status = %d limit = %d", rec.Code, ledger.lastLimit)
	}
	rec = serve(t, handler, http.MethodGet, "/reports/recent?limit=-3", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = serve(t, handler, http.MethodGet, "/inventory", "")
	inventory := decodeBody[struct {
		Items []domain.InventoryEntry `json:"items"`
	}](t, rec)
	if len(inventory.Items) != 1 || inventory.Items[0].CurrentStock != 25 {
		t.Fatalf("unexpected inventory %#v", inventory.Items)
	}
}

// TestHandlerItemEndpoints verifies catalog routes, including static routes beside `{id}`.
func TestHandlerItemEndpoints(t *testing.T) {
	catalog := &stubCatalogService{items: domain.SeedItems(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
	handler := NewHandler(&stubLedgerService{}, catalog, nil)

	rec := serve(t, handler, http.MethodGet, "/items?category=Panel", "")
	if rec.Code != http.StatusOK || catalog.lastList.Category != "Panel" {
		t.Fatalf("list status = %d request = %#v", rec.Code, catalog.lastList)
	}

	rec = serve(t, handler, http.MethodGet, "/items/search?q=rak+b", "")
	if rec.Code != http.StatusOK || catalog.lastList.Query != "rak b" {
		t.Fatalf("search status = %d request = %#v", rec.Code, catalog.lastList)
	}
	rec = serve(t, handler, http.MethodGet, "/items/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank search status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = serve(t, handler, http.MethodGet, "/items/low", "")
	if rec.Code != http.StatusOK || catalog.lastID != "" {
		t.Fatalf("low route status = %d, routed as id %q", rec.Code, catalog.lastID)
	}

	rec = serve(t, handler, http.MethodPost, "/items", `{"name":"Arrester 24kV","category":"Proteksi","stock":3,"min_stock":10}`)
	if rec.Code != http.StatusCreated || catalog.lastInput.MinStock != 10 {
		t.Fatalf("add status = %d input = %#v", rec.Code, catalog.lastInput)
	}

	rec = serve(t, handler, http.MethodPatch, "/items/WH005", `{"location":"Rak E-02"}`)
	if rec.Code != http.StatusOK || catalog.lastPatch.Location == nil || *catalog.lastPatch.Location != "Rak E-02" {
		t.Fatalf("update status = %d patch = %#v", rec.Code, catalog.lastPatch)
	}
	if catalog.lastPatch.Stock != nil {
		t.Fatalf("expected untouched stock in patch, got %v", *catalog.lastPatch.Stock)
	}

	rec = serve(t, handler, http.MethodDelete, "/items/WH005", "")
	if rec.Code != http.StatusNoContent || catalog.lastID != "WH005" {
		t.Fatalf("delete status = %d id = %q", rec.Code, catalog.lastID)
	}

	rec = serve(t, handler, http.MethodGet, "/dashboard", "")
	if dash := decodeBody[app.Dashboard](t, rec); dash.TotalItems != 4 {
		t.Fatalf("dashboard total = %d, want 4", dash.TotalItems)
	}
}

// TestHandlerActivity verifies the optional activity surface.
func TestHandlerActivity(t *testing.T) {
	rec := serve(t, NewHandler(&stubLedgerService{}, &stubCatalogService{}, nil), http.MethodGet, "/activity", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}

	activity := &stubActivityService{events: []domain.ChangeEvent{{ID: 1, Operation: domain.ChangeOperationRecord, TransactionID: "TXN005"}}}
	rec = serve(t, NewHandler(&stubLedgerService{}, &stubCatalogService{}, activity), http.MethodGet, "/activity?limit=5", "")
	if rec.Code != http.StatusOK || activity.lastLimit != 5 {
		t.Fatalf("status = %d limit = %d", rec.Code, activity.lastLimit)
	}
	body := decodeBody[struct {
		Events []domain.ChangeEvent `json:"events"`
	}](t, rec)
	if len(body.Events) != 1 || body.Events[0].TransactionID != "TXN005" {
		t.Fatalf("unexpected events %#v", body.Events)
	}
}

// TestHandlerRouteGuards verifies method guards and unknown-route handling.
func TestHandlerRouteGuards(t *testing.T) {
	handler := NewHandler(&stubLedgerService{}, &stubCatalogService{}, nil)

	cases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
		wantAllow  string
	}{
		{
			name:       "inventory requires get",
			method:     http.MethodPost,
			path:       "/inventory",
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "method_not_allowed",
			wantAllow:  http.MethodGet,
		},
		{
			name:       "transaction item route rejects patch",
			method:     http.MethodPatch,
			path:       "/transactions/TXN001",
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "method_not_allowed",
			wantAllow:  "GET, PUT, DELETE",
		},
		{
			name:       "unknown route returns not found",
			method:     http.MethodGet,
			path:       "/not/a/route",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, handler, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			envelope := decodeErrorEnvelope(t, rec)
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("error.code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Allow"); got != tt.wantAllow {
				t.Fatalf("Allow header = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

// TestHandlerServicesUnavailable verifies nil services stay fail-closed.
func TestHandlerServicesUnavailable(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	for _, path := range []string{"/transactions", "/inventory", "/items", "/dashboard"} {
		rec := serve(t, handler, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
		}
		if envelope := decodeErrorEnvelope(t, rec); envelope.Error.Code != "service_unavailable" {
			t.Fatalf("%s error.code = %q", path, envelope.Error.Code)
		}
	}
}

// TestHandlerMiddlewareSeesRoutePattern verifies injected middleware observes chi route patterns.
func TestHandlerMiddlewareSeesRoutePattern(t *testing.T) {
	var seen string
	observe := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			seen = routePattern(r)
		})
	}
	handler := NewHandler(&stubLedgerService{txs: seedTransactions()}, &stubCatalogService{}, nil, observe)
	serve(t, handler, http.MethodGet, "/transactions/TXN001", "")
	if seen != "/transactions/{id}" {
		t.Fatalf("route pattern = %q, want /transactions/{id}", seen)
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
