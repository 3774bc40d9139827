package batch

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/table"
)

// Default artifact file names, matching the layout the downstream analysis
// expects next to the images.
const (
	DefaultRawName      = "_raw_results.csv"
	DefaultSummaryName  = "_means.csv"
	DefaultSkipName     = "_skipped.yaml"
	DefaultWorkbookName = "_results.xlsx"
)

// PersistOptions selects which artifacts are written and their names.
type PersistOptions struct {
	RawName      string
	SummaryName  string
	SkipName     string
	WorkbookName string
	Workbook     bool
}

// Artifacts lists the files written by Persist. WorkbookPath is empty unless
// the workbook was requested.
type Artifacts struct {
	RawPath      string `json:"raw_path"`
	SummaryPath  string `json:"summary_path"`
	SkipPath     string `json:"skip_path"`
	WorkbookPath string `json:"workbook_path,omitempty"`
}

// skipLog is the YAML document written for skipped images.
type skipLog struct {
	Dir     string       `yaml:"dir"`
	Images  int          `yaml:"images"`
	Skipped []model.Skip `yaml:"skipped"`
}

// Persist writes the raw observation table, the summary table and the skip
// log into outDir. Tables are always written, with only a header when empty.
func Persist(outDir string, res *Result, rows []model.SummaryRow, opts PersistOptions) (*Artifacts, error) {
	if res == nil {
		return nil, eris.New("batch: nil result")
	}
	opts = withDefaultNames(opts)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "batch: create %s", outDir)
	}

	art := &Artifacts{
		RawPath:     filepath.Join(outDir, opts.RawName),
		SummaryPath: filepath.Join(outDir, opts.SummaryName),
		SkipPath:    filepath.Join(outDir, opts.SkipName),
	}

	if err := writeFile(art.RawPath, func(w io.Writer) error {
		return table.WriteObservations(w, res.Observations)
	}); err != nil {
		return nil, err
	}
	if err := writeFile(art.SummaryPath, func(w io.Writer) error {
		return table.WriteSummary(w, rows)
	}); err != nil {
		return nil, err
	}

	skips := res.Skips
	if skips == nil {
		skips = []model.Skip{}
	}
	if err := writeFile(art.SkipPath, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(skipLog{Dir: res.Dir, Images: res.Images, Skipped: skips}); err != nil {
			return eris.Wrap(err, "batch: encode skip log")
		}
		return eris.Wrap(enc.Close(), "batch: close skip log")
	}); err != nil {
		return nil, err
	}

	if opts.Workbook {
		art.WorkbookPath = filepath.Join(outDir, opts.WorkbookName)
		if err := table.WriteWorkbook(art.WorkbookPath, res.Observations, rows, res.Skips); err != nil {
			return nil, err
		}
	}

	zap.L().Info("batch: artifacts written",
		zap.String("raw", art.RawPath),
		zap.String("summary", art.SummaryPath),
		zap.String("skipped", art.SkipPath),
		zap.String("workbook", art.WorkbookPath),
	)
	return art, nil
}

// ReadSkipLog loads a skip log written by Persist.
func ReadSkipLog(path string) ([]model.Skip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read %s", path)
	}
	var l skipLog
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrapf(err, "batch: parse %s", path)
	}
	return l.Skipped, nil
}

func withDefaultNames(opts PersistOptions) PersistOptions {
	if opts.RawName == "" {
		opts.RawName = DefaultRawName
	}
	if opts.SummaryName == "" {
		opts.SummaryName = DefaultSummaryName
	}
	if opts.SkipName == "" {
		opts.SkipName = DefaultSkipName
	}
	if opts.WorkbookName == "" {
		opts.WorkbookName = DefaultWorkbookName
	}
	return opts
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "batch: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "batch: flush %s", path)
	}
	return eris.Wrapf(f.Close(), "batch: close %s", path)
}
