package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect classification run history",
	Long:  "Commands for listing and viewing recorded classify runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List classify runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		dir, _ := cmd.Flags().GetString("dir")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:   model.RunStatus(status),
			InputDir: dir,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		runs, err := st.ListRuns(ctx, statsFilter(since, time.Now()))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func openRunStore(cmd *cobra.Command) (store.Store, error) {
	st, err := initStore(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("runs: store.driver is none")
	}
	return st, nil
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("dir", "", "filter by input directory")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h; 0 for all)")

	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Running    int
	Images     int
	Observed   int
	Skipped    int
	AvgDurSecs float64
}

// statsFilter selects every run created within since of now; a zero since
// selects all runs.
func statsFilter(since time.Duration, now time.Time) store.RunFilter {
	filter := store.RunFilter{Limit: -1}
	if since > 0 {
		filter.CreatedAfter = now.Add(-since)
	}
	return filter
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			s.Images += r.Images
			s.Observed += r.Observed
			s.Skipped += r.Skipped
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			durCount++
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Running++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Images:\t%d\n", s.Images)
	_, _ = fmt.Fprintf(w, "  Observed:\t%d\n", s.Observed)
	_, _ = fmt.Fprintf(w, "  Skipped:\t%d\n", s.Skipped)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDIR\tSTATUS\tIMAGES\tOBSERVED\tSKIPPED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---\t------\t------\t--------\t-------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		dir := r.InputDir
		if len(dir) > 30 {
			dir = "..." + dir[len(dir)-27:]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			dir,
			r.Status,
			r.Images,
			r.Observed,
			r.Skipped,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
