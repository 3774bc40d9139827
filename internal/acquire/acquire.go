// Package acquire downloads Street View captures for a set of sensor
// locations into the directory layout the batch aggregator reads.
package acquire

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/naming"
	"github.com/sells-group/streetcover/pkg/streetview"
)

// Default capture angles, in degrees.
var (
	DefaultHeadings = []int{0, 60, 120, 180, 240, 300}
	DefaultPitches  = []int{-45, 0, 45, 90}
)

const imageExt = ".jpg"

// Task is one capture to download.
type Task struct {
	Key     naming.Key
	Request streetview.Request
	File    string
}

// Plan expands every location into one task per heading and pitch, in
// location, heading, pitch order.
func Plan(locs []model.Location, headings, pitches []int) ([]Task, error) {
	tasks := make([]Task, 0, len(locs)*len(headings)*len(pitches))
	for _, loc := range locs {
		for _, h := range headings {
			for _, p := range pitches {
				key := naming.Key{SID: loc.SID, Heading: strconv.Itoa(h), Pitch: strconv.Itoa(p)}
				file, err := naming.Encode(key, imageExt)
				if err != nil {
					return nil, eris.Wrapf(err, "acquire: plan %s", loc.SID)
				}
				tasks = append(tasks, Task{
					Key:     key,
					Request: streetview.Request{Lat: loc.Lat, Lon: loc.Lon, Heading: h, Pitch: p},
					File:    file,
				})
			}
		}
	}
	return tasks, nil
}

// Options controls a download run.
type Options struct {
	OutDir    string
	Workers   int
	Overwrite bool
}

// Failure records a capture that could not be downloaded.
type Failure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Report summarises a download run.
type Report struct {
	Planned    int       `json:"planned"`
	Downloaded int       `json:"downloaded"`
	Existing   int       `json:"existing"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Run downloads every task into opts.OutDir. Per-capture failures are logged
// and reported; only a cancelled context or an unwritable output directory
// fails the run.
func Run(ctx context.Context, client streetview.Client, tasks []Task, opts Options) (*Report, error) {
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "acquire: create %s", opts.OutDir)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	log := zap.L().With(zap.String("out_dir", opts.OutDir))
	log.Info("acquire: downloading", zap.Int("tasks", len(tasks)), zap.Int("workers", workers))

	var (
		mu     sync.Mutex
		report = &Report{Planned: len(tasks)}
	)
	failures := make([]*Failure, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "acquire: cancelled")
			}
			path := filepath.Join(opts.OutDir, task.File)

			if !opts.Overwrite && exists(path) {
				mu.Lock()
				report.Existing++
				mu.Unlock()
				return nil
			}

			if err := download(gctx, client, task, path); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return eris.Wrap(ctxErr, "acquire: cancelled")
				}
				log.Warn("acquire: capture failed", zap.String("file", task.File), zap.Error(err))
				failures[i] = &Failure{File: task.File, Reason: err.Error()}
				return nil
			}

			mu.Lock()
			report.Downloaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, f := range failures {
		if f != nil {
			report.Failures = append(report.Failures, *f)
		}
	}

	log.Info("acquire: complete",
		zap.Int("downloaded", report.Downloaded),
		zap.Int("existing", report.Existing),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}

func download(ctx context.Context, client streetview.Client, task Task, path string) error {
	img, err := client.Fetch(ctx, task.Request)
	if err != nil {
		return err
	}
	return writeAtomic(path, img.Data)
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so an interrupted run never leaves a truncated image behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return eris.Wrap(err, "acquire: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "acquire: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "acquire: close %s", path)
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "acquire: rename %s", path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
