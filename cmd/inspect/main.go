package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rickgao/binance-collector/internal/sink"
)

func main() {
	path := flag.String("file", "binance_full_depth.parquet", "path to a collected Parquet file")
	head := flag.Int("head", 5, "number of rows to print")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := inspect(context.Background(), *path, *head); err != nil {
		logger.Error("inspect failed", "file", *path, "error", err)
		os.Exit(1)
	}
}

func inspect(ctx context.Context, path string, head int) error {
	sum, err := sink.Summarize(path)
	if err != nil {
		return err
	}

	fmt.Printf("file:       %s\n", path)
	fmt.Printf("rows:       %d\n", sum.Rows)
	fmt.Printf("row groups: %d\n", len(sum.RowGroups))
	for i, n := range sum.RowGroups {
		fmt.Printf("  [%d] %d rows\n", i, n)
	}

	keys := make([]string, 0, len(sum.Metadata))
	for k := range sum.Metadata {
		if k == "ARROW:schema" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		fmt.Println("metadata:")
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", k, sum.Metadata[k])
		}
	}

	fmt.Println("schema:")
	for _, f := range sum.Schema.Fields() {
		fmt.Printf("  %-12s %s\n", f.Name, f.Type)
	}

	if head <= 0 || sum.Rows == 0 {
		return nil
	}

	rows, err := sink.ReadRows(ctx, path, head)
	if err != nil {
		return err
	}

	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "timestamp\tevent_type\tlatency_ms\tsymbol\ttrade_price\ttrade_qty\ttrade_side\tbids_json\tasks_json")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%g\t%g\t%s\t%s\t%s\n",
			r.Timestamp, r.EventType, r.LatencyMs, r.Symbol,
			r.TradePrice, r.TradeQty, r.TradeSide,
			truncate(r.BidsJSON, 40), truncate(r.AsksJSON, 40),
		)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
