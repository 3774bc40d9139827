package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/streetcover/internal/batch"
	"github.com/sells-group/streetcover/internal/config"
	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/store"
	"github.com/sells-group/streetcover/internal/summary"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify every image in a directory and write per-site means",
	Long: "Computes vegetation and sky percentages for every image in --dir, " +
		"writes the raw table, the per-site means and the skip log, and records the run in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dir, _ := cmd.Flags().GetString("dir")
		out, _ := cmd.Flags().GetString("out")
		noStore, _ := cmd.Flags().GetBool("no-store")

		if cmd.Flags().Changed("suffix") {
			cfg.Classify.Suffix, _ = cmd.Flags().GetString("suffix")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Classify.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if cmd.Flags().Changed("xlsx") {
			cfg.Classify.Workbook, _ = cmd.Flags().GetBool("xlsx")
		}
		if noStore {
			cfg.Store.Driver = config.DriverNone
		}
		if err := cfg.Validate("classify"); err != nil {
			return err
		}
		if out == "" {
			out = dir
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		rep, err := runClassify(ctx, st, classifyOptions{
			Dir:    dir,
			OutDir: out,
			Batch: batch.Config{
				Suffix:   cfg.Classify.Suffix,
				Headings: cfg.Classify.Headings,
				Pitches:  cfg.Classify.Pitches,
				Workers:  cfg.Classify.Workers,
			},
			Persist: batch.PersistOptions{Workbook: cfg.Classify.Workbook},
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

// classifyOptions configures one classify invocation.
type classifyOptions struct {
	Dir     string
	OutDir  string
	Batch   batch.Config
	Persist batch.PersistOptions
}

// classifyReport is printed when a classify run finishes.
type classifyReport struct {
	RunID     string           `json:"run_id,omitempty"`
	Dir       string           `json:"dir"`
	Counts    model.RunCounts  `json:"counts"`
	Sites     int              `json:"summary_rows"`
	Artifacts *batch.Artifacts `json:"artifacts"`
}

// runClassify aggregates one directory, writes its artifacts and records the
// run in st. A nil st skips recording.
func runClassify(ctx context.Context, st store.Store, opts classifyOptions) (*classifyReport, error) {
	log := zap.L().With(zap.String("dir", opts.Dir))

	var run *model.Run
	if st != nil {
		r, err := st.CreateRun(ctx, opts.Dir)
		if err != nil {
			return nil, eris.Wrap(err, "classify: create run")
		}
		run = r
		log = log.With(zap.String("run_id", run.ID))
	}

	fail := func(cause error) error {
		if run != nil {
			if err := st.FailRun(ctx, run.ID, cause.Error()); err != nil {
				log.Warn("classify: record failure", zap.Error(err))
			}
		}
		return cause
	}

	res, err := batch.New(opts.Batch).Run(ctx, opts.Dir)
	if err != nil {
		return nil, fail(err)
	}

	rows := summary.Summarize(res.Observations)
	arts, err := batch.Persist(opts.OutDir, res, rows, opts.Persist)
	if err != nil {
		return nil, fail(err)
	}

	counts := model.RunCounts{
		Images:   res.Images,
		Observed: len(res.Observations),
		Skipped:  len(res.Skips),
	}

	rep := &classifyReport{
		Dir:       opts.Dir,
		Counts:    counts,
		Sites:     len(rows),
		Artifacts: arts,
	}

	if run != nil {
		rep.RunID = run.ID
		if err := st.SaveObservations(ctx, run.ID, res.Observations); err != nil {
			return nil, fail(err)
		}
		if err := st.SaveSkips(ctx, run.ID, res.Skips); err != nil {
			return nil, fail(err)
		}
		if err := st.CompleteRun(ctx, run.ID, counts); err != nil {
			return nil, eris.Wrap(err, "classify: complete run")
		}
	}

	log.Info("classify complete",
		zap.Int("images", counts.Images),
		zap.Int("observed", counts.Observed),
		zap.Int("skipped", counts.Skipped),
		zap.Int("summary_rows", len(rows)),
	)
	return rep, nil
}

func init() {
	classifyCmd.Flags().String("dir", "", "directory of images named <SID>_<heading>_<pitch>.<ext>")
	classifyCmd.Flags().String("out", "", "directory for result files (default --dir)")
	classifyCmd.Flags().String("suffix", ".jpg", "image file suffix (case-insensitive)")
	classifyCmd.Flags().Int("workers", 1, "concurrent image workers")
	classifyCmd.Flags().Bool("xlsx", false, "also write an Excel workbook of all tables")
	classifyCmd.Flags().Bool("no-store", false, "do not record the run in the store")
	_ = classifyCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(classifyCmd)
}
