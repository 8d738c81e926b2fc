// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter with ledger tools and optional catalog tools.
func NewHandler(cfg Config, ledger common.LedgerService, catalog common.CatalogService) (*Handler, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerLedgerTools(mcpSrv, ledger)
	registerReportTools(mcpSrv, ledger)
	if catalog != nil {
		registerCatalogTools(mcpSrv, catalog)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "gudang"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// transactionToolOptions lists the argument schema shared by record and amend.
func transactionToolOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("type", mcp.Required(), mcp.Description("Movement direction"), mcp.Enum(string(domain.DirectionIn), string(domain.DirectionOut))),
		mcp.WithString("item", mcp.Required(), mcp.Description("Item name")),
		mcp.WithString("item_id", mcp.Description("Catalog item id, when known")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("Units moved")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Movement date as YYYY-MM-DD")),
		mcp.WithString("operator", mcp.Description("Person recording the movement")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
	}
}

// transactionInputFrom reads transaction arguments from one tool call.
func transactionInputFrom(req mcp.CallToolRequest) (domain.TransactionInput, error) {
	direction, err := req.RequireString("type")
	if err != nil {
		return domain.TransactionInput{}, err
	}
	item, err := req.RequireString("item")
	if err != nil {
		return domain.TransactionInput{}, err
	}
	quantity, err := req.RequireInt("quantity")
	if err != nil {
		return domain.TransactionInput{}, err
	}
	date, err := req.RequireString("date")
	if err != nil {
		return domain.TransactionInput{}, err
	}
	return domain.TransactionInput{
		Direction: domain.Direction(direction),
		ItemName:  item,
		ItemID:    req.GetString("item_id", ""),
		Quantity:  quantity,
		Date:      domain.Date(date),
		Operator:  req.GetString("operator", ""),
		Notes:     req.GetString("notes", ""),
	}, nil
}

// registerLedgerTools registers the record, amend, and remove tools.
func registerLedgerTools(srv *mcpserver.MCPServer, ledger common.LedgerService) {
	srv.AddTool(
		mcp.NewTool(
			"gudang.record_transaction",
			append([]mcp.ToolOption{
				mcp.WithDescription("Record one goods-in or goods-out movement. The ledger assigns the id."),
			}, transactionToolOptions()...)...,
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			in, err := transactionInputFrom(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tx, err := ledger.RecordTransaction(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(tx)
			if err != nil {
				return nil, fmt.Errorf("encode record_transaction result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"gudang.amend_transaction",
			append([]mcp.ToolOption{
				mcp.WithDescription("Replace every field of one transaction, keeping its id and log position."),
				mcp.WithString("id", mcp.Required(), mcp.Description("Transaction id")),
			}, transactionToolOptions()...)...,
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			in, err := transactionInputFrom(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tx, err := ledger.AmendTransaction(ctx, id, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(tx)
			if err != nil {
				return nil, fmt.Errorf("encode amend_transaction result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"gudang.remove_transaction",
			mcp.WithDescription("Delete one transaction by id."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Transaction id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tx, err := ledger.RemoveTransaction(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(tx)
			if err != nil {
				return nil, fmt.Errorf("encode remove_transaction result: %w", err)
			}
			return result, nil
		},
	)
}

// registerReportTools registers read-only inventory and report tools.
func registerReportTools(srv *mcpserver.MCPServer, ledger common.LedgerService) {
	srv.AddTool(
		mcp.NewTool(
			"gudang.inventory",
			mcp.WithDescription("Return current stock per item, derived from the full transaction log."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entries, err := ledger.Inventory(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"items": entries,
			})
			if err != nil {
				return nil, fmt.Errorf("encode inventory result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"gudang.report_range",
			mcp.WithDescription("List transactions dated within an inclusive range, newest first."),
			mcp.WithString("start", mcp.Description("First date as YYYY-MM-DD (open when empty)")),
			mcp.WithString("end", mcp.Description("Last date as YYYY-MM-DD (open when empty)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			report, err := ledger.TransactionsInRange(ctx, common.RangeRequest{
				Start: req.GetString("start", ""),
				End:   req.GetString("end", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(report)
			if err != nil {
				return nil, fmt.Errorf("encode report_range result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"gudang.monthly_summary",
			mcp.WithDescription("Summarize goods in, goods out, and net change for one calendar month."),
			mcp.WithNumber("month", mcp.Required(), mcp.Description("Month number, 1-12")),
			mcp.WithNumber("year", mcp.Required(), mcp.Description("Four-digit year")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			month, err := req.RequireInt("month")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			year, err := req.RequireInt("year")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			summary, err := ledger.MonthlySummary(ctx, common.MonthlyRequest{
				Month: strconv.Itoa(month),
				Year:  strconv.Itoa(year),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(summary)
			if err != nil {
				return nil, fmt.Errorf("encode monthly_summary result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"gudang.recent_transactions",
			mcp.WithDescription("Return the newest transactions by date."),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			txs, err := ledger.RecentTransactions(ctx, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"transactions": txs,
			})
			if err != nil {
				return nil, fmt.Errorf("encode recent_transactions result: %w", err)
			}
			return result, nil
		},
	)
}

// registerCatalogTools registers optional catalog list tools.
func registerCatalogTools(srv *mcpserver.MCPServer, catalog common.CatalogService) {
	srv.AddTool(
		mcp.NewTool(
			"gudang.list_items",
			mcp.WithDescription("List catalog items, optionally filtered by category or search text."),
			mcp.WithString("category", mcp.Description("Exact category")),
			mcp.WithString("query", mcp.Description("Case-insensitive text matched against name, id, category, and location")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			items, err := catalog.ListItems(ctx, common.ItemListRequest{
				Category: req.GetString("category", ""),
				Query:    req.GetString("query", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"items": items,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_items result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"gudang.low_stock_items",
			mcp.WithDescription("List catalog items at or below their minimum stock."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			items, err := catalog.LowStockItems(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"items": items,
			})
			if err != nil {
				return nil, fmt.Errorf("encode low_stock_items result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrPersist):
		return mcp.NewToolResultError("persist_failed: " + err.Error())
	case errors.Is(err, common.ErrActivityUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
