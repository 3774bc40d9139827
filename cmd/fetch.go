package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/streetcover/internal/acquire"
	"github.com/sells-group/streetcover/internal/config"
	"github.com/sells-group/streetcover/internal/table"
	"github.com/sells-group/streetcover/pkg/streetview"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download Street View images around each sensor site",
	Long: "Reads SID, LAT and LON from a CSV or XLSX file and downloads one image per " +
		"configured heading and pitch, named <SID>_<heading>_<pitch>.jpg.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		locPath, _ := cmd.Flags().GetString("locations")
		out, _ := cmd.Flags().GetString("out")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		if cmd.Flags().Changed("workers") {
			cfg.StreetView.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		locs, err := table.ReadLocations(ctx, locPath)
		if err != nil {
			return err
		}
		tasks, err := acquire.Plan(locs, cfg.StreetView.Headings, cfg.StreetView.Pitches)
		if err != nil {
			return err
		}

		rep, err := acquire.Run(ctx, newStreetViewClient(cfg.StreetView), tasks, acquire.Options{
			OutDir:    out,
			Workers:   cfg.StreetView.Workers,
			Overwrite: overwrite,
		})
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

// newStreetViewClient builds a Street View client from configuration.
func newStreetViewClient(sc config.StreetViewConfig) streetview.Client {
	opts := []streetview.Option{
		streetview.WithRateLimit(sc.RateLimit),
		streetview.WithSize(sc.Size),
		streetview.WithFOV(sc.FOV),
	}
	if sc.BaseURL != "" {
		opts = append(opts, streetview.WithBaseURL(sc.BaseURL))
	}
	return streetview.NewClient(sc.APIKey, opts...)
}

func init() {
	fetchCmd.Flags().String("locations", "", "CSV or XLSX file with SID, LAT and LON columns")
	fetchCmd.Flags().String("out", "images", "directory to write images into")
	fetchCmd.Flags().Bool("overwrite", false, "re-download images that already exist")
	fetchCmd.Flags().Int("workers", 4, "concurrent downloads")
	_ = fetchCmd.MarkFlagRequired("locations")
	rootCmd.AddCommand(fetchCmd)
}
