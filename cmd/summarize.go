package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/streetcover/internal/summary"
	"github.com/sells-group/streetcover/internal/table"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <raw_results.csv>",
	Short: "Recompute per-site means from a raw results table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return summarizeFile(cmd.Context(), args[0], out)
	},
}

// summarizeFile reads a raw observation table and writes its means table to
// out, or to stdout when out is empty.
func summarizeFile(ctx context.Context, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return eris.Wrapf(err, "summarize: open %s", in)
	}
	defer f.Close() //nolint:errcheck

	rows, err := summary.FromCSV(ctx, f)
	if err != nil {
		return eris.Wrapf(err, "summarize: %s", in)
	}

	if out == "" {
		return table.WriteSummary(os.Stdout, rows)
	}

	w, err := os.Create(out)
	if err != nil {
		return eris.Wrapf(err, "summarize: create %s", out)
	}
	if err := table.WriteSummary(w, rows); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return eris.Wrapf(err, "summarize: close %s", out)
	}

	zap.L().Info("summary written", zap.String("path", out), zap.Int("rows", len(rows)))
	return nil
}

func init() {
	summarizeCmd.Flags().String("out", "", "output CSV path (default stdout)")
	rootCmd.AddCommand(summarizeCmd)
}
