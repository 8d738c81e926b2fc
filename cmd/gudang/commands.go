package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	serveradapter "github.com/hylla/gudang/internal/adapters/server"
	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
	"github.com/spf13/cobra"
)

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = serveradapter.Run

// withRuntime opens the runtime for one command invocation and releases it afterwards.
func (o *rootOptions) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *appRuntime, out printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := o.open(ctx, cmd.CommandPath())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt, printer{out: o.stdout, json: o.jsonOut})
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := printer{out: opts.stdout, json: opts.jsonOut}
			return out.emit(paths, func() string {
				return newTable([]string{"Path", "Value"}, nil, [][]string{
					{"config", paths.ConfigPath},
					{"env", paths.EnvPath},
					{"data", paths.DataDir},
					{"db", paths.DBPath},
				}, nil)
			})
		},
	}
}

// transactionFlags binds the transaction input flags shared by record and amend.
type transactionFlags struct {
	direction string
	item      string
	itemID    string
	quantity  int
	date      string
	operator  string
	notes     string
}

func (f *transactionFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.direction, "type", "", "movement direction: in or out")
	flags.StringVar(&f.item, "item", "", "item name")
	flags.StringVar(&f.itemID, "item-id", "", "catalog item id")
	flags.IntVar(&f.quantity, "quantity", 0, "quantity moved")
	flags.StringVar(&f.date, "date", "", "transaction date (YYYY-MM-DD, default today)")
	flags.StringVar(&f.operator, "operator", "", "operator name")
	flags.StringVar(&f.notes, "notes", "", "free-form notes")
}

// apply overwrites the fields of in whose flags were set on cmd.
func (f *transactionFlags) apply(cmd *cobra.Command, in domain.TransactionInput) domain.TransactionInput {
	flags := cmd.Flags()
	if flags.Changed("type") {
		in.Direction = domain.Direction(f.direction)
	}
	if flags.Changed("item") {
		in.ItemName = f.item
	}
	if flags.Changed("item-id") {
		in.ItemID = f.itemID
	}
	if flags.Changed("quantity") {
		in.Quantity = f.quantity
	}
	if flags.Changed("date") {
		in.Date = domain.Date(f.date)
	}
	if flags.Changed("operator") {
		in.Operator = f.operator
	}
	if flags.Changed("notes") {
		in.Notes = f.notes
	}
	return in
}

func newRecordCommand(opts *rootOptions) *cobra.Command {
	var f transactionFlags
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a goods-in or goods-out transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				in := f.apply(cmd, domain.TransactionInput{Date: domain.DateOf(time.Now())})
				tx, err := rt.api.RecordTransaction(ctx, in)
				if err != nil && !(errors.Is(err, common.ErrPersist) && tx.ID != "") {
					return err
				}
				if emitErr := out.emit(tx, func() string { return renderTransaction(tx) }); emitErr != nil {
					return emitErr
				}
				return err
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newAmendCommand(opts *rootOptions) *cobra.Command {
	var f transactionFlags
	cmd := &cobra.Command{
		Use:   "amend ID",
		Short: "Replace the fields of an existing transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				existing, err := rt.api.GetTransaction(ctx, args[0])
				if err != nil {
					return err
				}
				in := f.apply(cmd, existing.Input())
				if cmd.Flags().Changed("item") && !cmd.Flags().Changed("item-id") {
					in.ItemID = ""
				}
				tx, err := rt.api.AmendTransaction(ctx, existing.ID, in)
				if err != nil && !(errors.Is(err, common.ErrPersist) && tx.ID != "") {
					return err
				}
				if emitErr := out.emit(tx, func() string { return renderTransaction(tx) }); emitErr != nil {
					return emitErr
				}
				return err
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Remove a transaction and reverse its stock effect",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				tx, err := rt.api.RemoveTransaction(ctx, args[0])
				if err != nil && !(errors.Is(err, common.ErrPersist) && tx.ID != "") {
					return err
				}
				if emitErr := out.emit(tx, func() string { return "removed\n" + renderTransaction(tx) }); emitErr != nil {
					return emitErr
				}
				return err
			})
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every transaction in log order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				txs, err := rt.api.ListTransactions(ctx)
				if err != nil {
					return err
				}
				return out.emit(txs, func() string { return renderTransactions(txs) })
			})
		},
	}
}

func newInventoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Show stock derived from the transaction log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				entries, err := rt.api.Inventory(ctx)
				if err != nil {
					return err
				}
				return out.emit(entries, func() string { return renderInventory(entries) })
			})
		},
	}
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Date-range, monthly, and recent transaction reports",
	}

	var start, end string
	rangeCmd := &cobra.Command{
		Use:   "range",
		Short: "Transactions dated within an inclusive range, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				result, err := rt.api.TransactionsInRange(ctx, common.RangeRequest{Start: start, End: end})
				if err != nil {
					return err
				}
				return out.emit(result, func() string { return renderRangeReport(result) })
			})
		},
	}
	rangeCmd.Flags().StringVar(&start, "start", "", "first date included (YYYY-MM-DD)")
	rangeCmd.Flags().StringVar(&end, "end", "", "last date included (YYYY-MM-DD)")

	now := time.Now()
	var month, year int
	monthlyCmd := &cobra.Command{
		Use:   "monthly",
		Short: "Totals and transactions for one calendar month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				summary, err := rt.api.MonthlySummary(ctx, common.MonthlyRequest{
					Month: strconv.Itoa(month),
					Year:  strconv.Itoa(year),
				})
				if err != nil {
					return err
				}
				return out.emit(summary, func() string { return renderMonthlySummary(summary) })
			})
		},
	}
	monthlyCmd.Flags().IntVar(&month, "month", int(now.Month()), "month number (1-12)")
	monthlyCmd.Flags().IntVar(&year, "year", now.Year(), "four-digit year")

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "Most recent transactions by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				txs, err := rt.api.RecentTransactions(ctx, limit)
				if err != nil {
					return err
				}
				return out.emit(txs, func() string { return renderTransactions(txs) })
			})
		},
	}
	recentCmd.Flags().IntVar(&limit, "limit", 0, "number of transactions (0 uses the configured default)")

	report.AddCommand(rangeCmd, monthlyCmd, recentCmd)
	return report
}

func newItemsCommand(opts *rootOptions) *cobra.Command {
	items := &cobra.Command{
		Use:   "items",
		Short: "Manage the warehouse item catalog",
	}

	var filter common.ItemListRequest
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				list, err := rt.api.ListItems(ctx, filter)
				if err != nil {
					return err
				}
				return out.emit(list, func() string { return renderItems(list) })
			})
		},
	}
	listCmd.Flags().StringVar(&filter.Category, "category", "", "only items in this category")
	listCmd.Flags().StringVar(&filter.Query, "query", "", "case-insensitive search over name, category, and location")

	var add domain.ItemInput
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a catalog item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				item, err := rt.api.AddItem(ctx, add)
				if err != nil {
					return err
				}
				return out.emit(item, func() string { return renderItem(item) })
			})
		},
	}
	addCmd.Flags().StringVar(&add.Name, "name", "", "item name")
	addCmd.Flags().StringVar(&add.Category, "category", "", "item category")
	addCmd.Flags().IntVar(&add.Stock, "stock", 0, "opening stock")
	addCmd.Flags().IntVar(&add.MinStock, "min-stock", 0, "restock threshold")
	addCmd.Flags().StringVar(&add.Location, "location", "", "storage location")
	addCmd.Flags().StringVar(&add.Description, "description", "", "item description")

	var upd domain.ItemInput
	updateCmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change selected fields of a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := itemPatchFromFlags(cmd, upd)
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				item, err := rt.api.UpdateItem(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return out.emit(item, func() string { return renderItem(item) })
			})
		},
	}
	updateCmd.Flags().StringVar(&upd.Name, "name", "", "item name")
	updateCmd.Flags().StringVar(&upd.Category, "category", "", "item category")
	updateCmd.Flags().IntVar(&upd.Stock, "stock", 0, "stock level")
	updateCmd.Flags().IntVar(&upd.MinStock, "min-stock", 0, "restock threshold")
	updateCmd.Flags().StringVar(&upd.Location, "location", "", "storage location")
	updateCmd.Flags().StringVar(&upd.Description, "description", "", "item description")

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				if err := rt.api.DeleteItem(ctx, args[0]); err != nil {
					return err
				}
				return out.emit(map[string]string{"deleted": args[0]}, func() string { return "deleted " + args[0] })
			})
		},
	}

	lowCmd := &cobra.Command{
		Use:   "low",
		Short: "Items at or below their minimum stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				list, err := rt.api.LowStockItems(ctx)
				if err != nil {
					return err
				}
				return out.emit(list, func() string { return renderItems(list) })
			})
		},
	}

	criticalCmd := &cobra.Command{
		Use:   "critical",
		Short: "Items at half their minimum stock or less",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				list, err := rt.api.CriticalStockItems(ctx)
				if err != nil {
					return err
				}
				return out.emit(list, func() string { return renderItems(list) })
			})
		},
	}

	items.AddCommand(listCmd, addCmd, updateCmd, deleteCmd, lowCmd, criticalCmd)
	return items
}

// itemPatchFromFlags builds a partial update from the flags set on cmd.
func itemPatchFromFlags(cmd *cobra.Command, values domain.ItemInput) domain.ItemPatch {
	flags := cmd.Flags()
	var patch domain.ItemPatch
	if flags.Changed("name") {
		patch.Name = &values.Name
	}
	if flags.Changed("category") {
		patch.Category = &values.Category
	}
	if flags.Changed("stock") {
		patch.Stock = &values.Stock
	}
	if flags.Changed("min-stock") {
		patch.MinStock = &values.MinStock
	}
	if flags.Changed("location") {
		patch.Location = &values.Location
	}
	if flags.Changed("description") {
		patch.Description = &values.Description
	}
	return patch
}

func newDashboardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Catalog statistics and the latest transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				dash, err := rt.api.Dashboard(ctx)
				if err != nil {
					return err
				}
				return out.emit(dash, func() string { return renderDashboard(dash) })
			})
		},
	}
}

func newActivityCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the ledger change-event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				events, err := rt.api.ListActivity(ctx, limit)
				if err != nil {
					return err
				}
				return out.emit(events, func() string { return renderActivity(events) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of the ledger and catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, _ printer) error {
				return runExport(ctx, rt.svc, outPath, opts.stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the ledger and catalog with a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return fmt.Errorf("--in is required")
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, _ printer) error {
				return runImport(ctx, rt.svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// resetResult reports the state left behind by reset.
type resetResult struct {
	Transactions int `json:"transactions"`
	Items        int `json:"items"`
}

func newResetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop stored transactions and items and restore the starter data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, out printer) error {
				if err := rt.svc.Reset(ctx); err != nil {
					return err
				}
				txs, err := rt.svc.ListTransactions(ctx)
				if err != nil {
					return err
				}
				items, err := rt.svc.ListItems(ctx)
				if err != nil {
					return err
				}
				res := resetResult{Transactions: len(txs), Items: len(items)}
				return out.emit(res, func() string {
					return fmt.Sprintf("reset to %d transaction(s) and %d item(s)", res.Transactions, res.Items)
				})
			})
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint, metricsEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, MCP tools, and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *appRuntime, _ printer) error {
				flags := cmd.Flags()
				cfg := serveradapter.Config{
					HTTPBind:        rt.cfg.Server.HTTP,
					APIEndpoint:     rt.cfg.Server.APIEndpoint,
					MCPEndpoint:     rt.cfg.Server.MCPEndpoint,
					MetricsEndpoint: rt.cfg.Server.MetricsEndpoint,
					ServerName:      opts.appName,
					ServerVersion:   version,
				}
				if flags.Changed("http") {
					cfg.HTTPBind = httpBind
				}
				if flags.Changed("api-endpoint") {
					cfg.APIEndpoint = apiEndpoint
				}
				if flags.Changed("mcp-endpoint") {
					cfg.MCPEndpoint = mcpEndpoint
				}
				if flags.Changed("metrics-endpoint") {
					cfg.MetricsEndpoint = metricsEndpoint
				}
				rt.logger.Info("starting server", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint, "metrics", cfg.MetricsEndpoint)
				return serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
					Ledger:      rt.api,
					Catalog:     rt.api,
					Activity:    rt.api,
					Store:       rt.store,
					Gatherer:    rt.registry,
					Middlewares: []func(http.Handler) http.Handler{rt.httpMetrics.Middleware},
				})
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&httpBind, "http", "127.0.0.1:8080", "HTTP listen address")
	flags.StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	flags.StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	flags.StringVar(&metricsEndpoint, "metrics-endpoint", "/metrics", "Prometheus metrics endpoint")
	return cmd
}

// runExport writes the current snapshot to stdout or a file.
func runExport(ctx context.Context, svc *app.Service, outPath string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport replaces stored state with the snapshot at inPath.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}
