package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/streetcover/internal/offset"
)

var offsetCmd = &cobra.Command{
	Use:   "offset",
	Short: "Shift waypoints perpendicular to the left of a reference path",
	Long: "Reads X,Y waypoints, finds the path segment each lies on and moves it " +
		"the configured distance 90 degrees to the left of the direction of travel.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pathFile, _ := cmd.Flags().GetString("path")
		wpFile, _ := cmd.Flags().GetString("waypoints")
		out, _ := cmd.Flags().GetString("out")
		if cmd.Flags().Changed("meters") {
			cfg.Offset.Meters, _ = cmd.Flags().GetFloat64("meters")
		}
		if cmd.Flags().Changed("geojson") {
			cfg.Offset.GeoJSON, _ = cmd.Flags().GetBool("geojson")
		}
		if err := cfg.Validate("offset"); err != nil {
			return err
		}

		var geoOut string
		if cfg.Offset.GeoJSON {
			geoOut = strings.TrimSuffix(out, filepath.Ext(out)) + ".geojson"
		}
		return runOffset(cmd.Context(), pathFile, wpFile, out, geoOut, cfg.Offset.Meters)
	},
}

// runOffset offsets every waypoint in wpFile against the path in pathFile and
// writes the result as CSV to out, plus GeoJSON to geoOut when set.
func runOffset(ctx context.Context, pathFile, wpFile, out, geoOut string, meters float64) error {
	path, err := offset.LoadPath(pathFile)
	if err != nil {
		return err
	}
	o, err := offset.New(path, meters)
	if err != nil {
		return err
	}

	f, err := os.Open(wpFile)
	if err != nil {
		return eris.Wrapf(err, "offset: open %s", wpFile)
	}
	wps, err := offset.LoadWaypoints(ctx, f)
	_ = f.Close()
	if err != nil {
		return err
	}

	pts := o.OffsetAll(wps)

	if err := writeTo(out, func(w io.Writer) error { return offset.WriteCSV(w, pts) }); err != nil {
		return err
	}
	if geoOut != "" {
		if err := writeTo(geoOut, func(w io.Writer) error { return offset.WriteGeoJSON(w, pts) }); err != nil {
			return err
		}
	}

	zap.L().Info("offset complete",
		zap.Int("waypoints", len(pts)),
		zap.Int("path_vertices", len(path)),
		zap.Float64("meters", meters),
		zap.String("out", out),
	)
	return nil
}

func writeTo(path string, fn func(io.Writer) error) error {
	w, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(w); err != nil {
		_ = w.Close()
		return err
	}
	return eris.Wrapf(w.Close(), "close %s", path)
}

func init() {
	offsetCmd.Flags().String("path", "", "reference path (.geojson, .json or .shp)")
	offsetCmd.Flags().String("waypoints", "", "CSV of waypoints with X and Y columns")
	offsetCmd.Flags().String("out", "result.csv", "output CSV path")
	offsetCmd.Flags().Float64("meters", 15000, "offset distance in meters")
	offsetCmd.Flags().Bool("geojson", false, "also write a .geojson next to --out")
	_ = offsetCmd.MarkFlagRequired("path")
	_ = offsetCmd.MarkFlagRequired("waypoints")
	rootCmd.AddCommand(offsetCmd)
}
