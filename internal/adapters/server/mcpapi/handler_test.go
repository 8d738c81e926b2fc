package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubLedgerService provides deterministic ledger responses for MCP tool tests.
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
	if s.err != nil {
		return domain.Transaction{}, s.err
	}
	return domain.BuildTransaction("TXN005", in), nil
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
	return domain.Transaction{ID: id}, s.err
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

// stubCatalogService provides deterministic catalog responses for MCP tool tests.
type stubCatalogService struct {
	items    []domain.Item
	lastList common.ItemListRequest
}

func (s *stubCatalogService) ListItems(_ context.Context, in common.ItemListRequest) ([]domain.Item, error) {
	s.lastList = in
	return s.items, nil
}

func (s *stubCatalogService) GetItem(_ context.Context, id string) (domain.Item, error) {
	return domain.Item{ID: id}, nil
}

func (s *stubCatalogService) AddItem(_ context.Context, in domain.ItemInput) (domain.Item, error) {
	return domain.Item{Name: in.Name}, nil
}

func (s *stubCatalogService) UpdateItem(_ context.Context, id string, _ domain.ItemPatch) (domain.Item, error) {
	return domain.Item{ID: id}, nil
}

func (s *stubCatalogService) DeleteItem(context.Context, string) error {
	return nil
}

func (s *stubCatalogService) LowStockItems(context.Context) ([]domain.Item, error) {
	return s.items, nil
}

func (s *stubCatalogService) CriticalStockItems(context.Context) ([]domain.Item, error) {
	return nil, nil
}

func (s *stubCatalogService) Dashboard(context.Context) (app.Dashboard, error) {
	return app.Dashboard{}, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "gudang-test",
				"version": "1.0.0",
			},
		},
	}
}

// newTestServer starts one MCP handler over the supplied services.
func newTestServer(t *testing.T, ledger common.LedgerService, catalog common.CatalogService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, ledger, catalog)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// listToolNames returns the registered tool names.
func listToolNames(t *testing.T, server *httptest.Server) []string {
	t.Helper()
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	return toolNames
}

// TestNewHandlerRequiresLedger verifies the adapter refuses to start without a ledger.
func TestNewHandlerRequiresLedger(t *testing.T) {
	if _, err := NewHandler(Config{}, nil, nil); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubLedgerService{}, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersTools verifies ledger tools are always present and catalog tools are optional.
func TestHandlerRegistersTools(t *testing.T) {
	ledgerOnly := listToolNames(t, newTestServer(t, &stubLedgerService{}, nil))
	for _, required := range []string{
		"gudang.record_transaction",
		"gudang.amend_transaction",
		"gudang.remove_transaction",
		"gudang.inventory",
		"gudang.report_range",
		"gudang.monthly_summary",
		"gudang.recent_transactions",
	} {
		if !slices.Contains(ledgerOnly, required) {
			t.Fatalf("tool list missing %s: %#v", required, ledgerOnly)
		}
	}
	if slices.Contains(ledgerOnly, "gudang.list_items") {
		t.Fatalf("unexpected catalog tool without catalog service: %#v", ledgerOnly)
	}

	withCatalog := listToolNames(t, newTestServer(t, &stubLedgerService{}, &stubCatalogService{}))
	for _, required := range []string{"gudang.list_items", "gudang.low_stock_items"} {
		if !slices.Contains(withCatalog, required) {
			t.Fatalf("tool list missing %s: %#v", required, withCatalog)
		}
	}
}

// TestHandlerRecordTransactionTool verifies arguments map onto the transaction input.
func TestHandlerRecordTransactionTool(t *testing.T) {
	ledger := &stubLedgerService{}
	server := newTestServer(t, ledger, nil)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "gudang.record_transaction", map[string]any{
		"type":     "out",
		"item":     "Kabel XLPE 150mm",
		"quantity": 5,
		"date":     "2024-01-16",
		"operator": "Rina",
	}))
	if isError, _ := callResp.Result["isError"].(bool); isError {
		t.Fatalf("unexpected tool error: %s", toolResultText(t, callResp.Result))
	}
	structured := toolResultStructured(t, callResp.Result)
	if structured["id"] != "TXN005" || structured["type"] != "out" {
		t.Fatalf("unexpected structured result %#v", structured)
	}
	if ledger.lastInput.Quantity != 5 || ledger.lastInput.Operator != "Rina" || ledger.lastInput.Date != "2024-01-16" {
		t.Fatalf("unexpected input %#v", ledger.lastInput)
	}

	_, missingArgResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "gudang.record_transaction", map[string]any{
		"type": "in",
		"item": "Kabel XLPE 150mm",
	}))
	if isError, _ := missingArgResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", missingArgResp.Result["isError"])
	}
}

// TestHandlerMapsServiceErrors verifies error prefixes surfaced to MCP clients.
func TestHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err        error
		wantPrefix string
	}{
		{errors.Join(common.ErrNotFound, errors.New("transaction TXN999")), "not_found: "},
		{errors.Join(common.ErrInvalidRequest, errors.New("quantity must be at least 0")), "invalid_request: "},
		{errors.Join(common.ErrPersist, errors.New("disk full")), "persist_failed: "},
		{errors.New("boom"), "internal_error: "},
	}
	for _, tt := range cases {
		t.Run(strings.TrimSuffix(tt.wantPrefix, ": "), func(t *testing.T) {
			ledger := &stubLedgerService{err: tt.err}
			server := newTestServer(t, ledger, nil)
			_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "gudang.remove_transaction", map[string]any{
				"id": "TXN999",
			}))
			if isError, _ := resp.Result["isError"].(bool); !isError {
				t.Fatalf("isError = %v, want true", resp.Result["isError"])
			}
			if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, tt.wantPrefix) {
				t.Fatalf("error text = %q, want prefix %q", text, tt.wantPrefix)
			}
			if ledger.lastID != "TXN999" {
				t.Fatalf("remove id = %q, want TXN999", ledger.lastID)
			}
		})
	}
}

// TestHandlerReportTools verifies report arguments reach the ledger service.
func TestHandlerReportTools(t *testing.T) {
	ledger := &stubLedgerService{
		txs:     domain.SeedTransactions()[:2],
		summary: domain.MonthlySummary{Month: 1, Year: 2024, TotalIn: 22, TotalOut: 8, NetChange: 14},
	}
	server := newTestServer(t, ledger, nil)

	_, rangeResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(6, "gudang.report_range", map[string]any{
		"start": "2024-01-13",
		"end":   "2024-01-14",
	}))
	if structured := toolResultStructured(t, rangeResp.Result); structured["count"] != float64(2) {
		t.Fatalf("unexpected range result %#v", structured)
	}
	if ledger.lastRange.Start != "2024-01-13" || ledger.lastRange.End != "2024-01-14" {
		t.Fatalf("unexpected range request %#v", ledger.lastRange)
	}

	_, monthlyResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(7, "gudang.monthly_summary", map[string]any{
		"month": 1,
		"year":  2024,
	}))
	if structured := toolResultStructured(t, monthlyResp.Result); structured["net_change"] != float64(14) {
		t.Fatalf("unexpected monthly result %#v", structured)
	}
	if ledger.lastMonthly.Month != "1" || ledger.lastMonthly.Year != "2024" {
		t.Fatalf("unexpected monthly request %#v", ledger.lastMonthly)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(8, "gudang.recent_transactions", map[string]any{
		"limit": 3,
	}))
	if ledger.lastLimit != 3 {
		t.Fatalf("recent limit = %d, want 3", ledger.lastLimit)
	}
}

// TestHandlerListItemsTool verifies catalog filters pass through.
func TestHandlerListItemsTool(t *testing.T) {
	catalog := &stubCatalogService{items: []domain.Item{{ID: "PN004", Name: "Panel Distribusi 20kV", Category: "Panel"}}}
	server := newTestServer(t, &stubLedgerService{}, catalog)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(9, "gudang.list_items", map[string]any{
		"category": "Panel",
		"query":    "distribusi",
	}))
	structured := toolResultStructured(t, resp.Result)
	items, _ := structured["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("unexpected items %#v", structured)
	}
	if catalog.lastList.Category != "Panel" || catalog.lastList.Query != "distribusi" {
		t.Fatalf("unexpected list request %#v", catalog.lastList)
	}
}
