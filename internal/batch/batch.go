// Package batch runs the classification pipeline over a directory of images
// and persists the resulting tables.
package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/streetcover/internal/cover"
	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/naming"
	"github.com/sells-group/streetcover/internal/raster"
)

// ErrNoImages is returned when the input directory holds no file with the
// configured suffix.
var ErrNoImages = eris.New("batch: no images found")

// Config holds everything the aggregator needs; there is no package state.
type Config struct {
	// Suffix selects image files, compared case-insensitively (e.g. ".jpg").
	Suffix string
	// Headings and Pitches restrict accepted capture angles. Empty means any
	// integer value is accepted.
	Headings []int
	Pitches  []int
	// Workers bounds concurrent image processing. Values below 2 process
	// images one at a time.
	Workers int
}

// Result is the outcome of one aggregator run.
type Result struct {
	Dir          string
	Images       int
	Observations []model.Observation
	Skips        []model.Skip
}

// Aggregator classifies every image in a directory.
type Aggregator struct {
	cfg Config
}

// New creates an Aggregator. An empty suffix defaults to ".jpg".
func New(cfg Config) *Aggregator {
	if cfg.Suffix == "" {
		cfg.Suffix = ".jpg"
	}
	if !strings.HasPrefix(cfg.Suffix, ".") {
		cfg.Suffix = "." + cfg.Suffix
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Aggregator{cfg: cfg}
}

// List returns the image files directly inside dir, sorted by name.
func (a *Aggregator) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: list %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), a.cfg.Suffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

type outcome struct {
	path string
	obs  model.Observation
	skip *model.Skip
}

// Run classifies every image in dir. Per-image failures become skips; the
// run only fails when dir cannot be listed, holds no images, or ctx is done.
// Observations and skips keep directory order regardless of Workers.
func (a *Aggregator) Run(ctx context.Context, dir string) (*Result, error) {
	paths, err := a.List(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, eris.Wrapf(ErrNoImages, "batch: %s has no *%s files", dir, a.cfg.Suffix)
	}

	log := zap.L().With(zap.String("dir", dir))
	log.Info("batch: classifying images", zap.Int("images", len(paths)), zap.Int("workers", a.cfg.Workers))

	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "batch: cancelled")
			}
			obs, err := a.Process(path)
			if err != nil {
				if model.KindOf(err) == "" {
					return err
				}
				outcomes[i] = outcome{path: path, skip: skipFor(log, path, err)}
				return nil
			}
			outcomes[i] = outcome{path: path, obs: obs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Case-insensitive suffixes and NFC names let distinct files share a key;
	// the first in directory order wins.
	seen := make(map[naming.Key]string, len(outcomes))
	res := &Result{Dir: dir, Images: len(paths)}
	for _, o := range outcomes {
		if o.skip == nil {
			k := naming.Key{SID: o.obs.SID, Heading: o.obs.Heading, Pitch: o.obs.Pitch}
			if first, dup := seen[k]; dup {
				err := model.FormatError(o.path, eris.Errorf("batch: duplicate key %s_%s_%s, already read from %s",
					k.SID, k.Heading, k.Pitch, filepath.Base(first)))
				o.skip = skipFor(log, o.path, err)
			} else {
				seen[k] = o.path
			}
		}
		if o.skip != nil {
			res.Skips = append(res.Skips, *o.skip)
			continue
		}
		res.Observations = append(res.Observations, o.obs)
	}

	log.Info("batch: complete",
		zap.Int("observed", len(res.Observations)),
		zap.Int("skipped", len(res.Skips)),
	)
	return res, nil
}

func skipFor(log *zap.Logger, path string, err error) *model.Skip {
	skip, _ := model.AsSkip(path, err)
	log.Warn("batch: skipping image",
		zap.String("path", skip.Path),
		zap.String("kind", string(skip.Kind)),
		zap.String("reason", skip.Reason),
	)
	return &skip
}

// Process classifies a single image. Errors are *model.ImageError values.
func (a *Aggregator) Process(path string) (model.Observation, error) {
	key, err := naming.Decode(path)
	if err != nil {
		return model.Observation{}, err
	}
	if err := a.validate(path, key); err != nil {
		return model.Observation{}, err
	}

	bands, err := raster.Load(path)
	if err != nil {
		return model.Observation{}, err
	}

	c, err := cover.Classify(bands, key.Pitch)
	if err != nil {
		var ie *model.ImageError
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = path
		}
		return model.Observation{}, err
	}

	return model.Observation{
		SID:      key.SID,
		Heading:  key.Heading,
		Pitch:    key.Pitch,
		PerGreen: c.Vegetation,
		PerSky:   c.Sky,
	}, nil
}

func (a *Aggregator) validate(path string, k naming.Key) error {
	heading, err := strconv.Atoi(k.Heading)
	if err != nil {
		return model.FormatError(path, eris.Errorf("batch: heading %q is not an integer", k.Heading))
	}
	pitch, err := strconv.Atoi(k.Pitch)
	if err != nil {
		return model.FormatError(path, eris.Errorf("batch: pitch %q is not an integer", k.Pitch))
	}
	if len(a.cfg.Headings) > 0 && !slices.Contains(a.cfg.Headings, heading) {
		return model.FormatError(path, eris.Errorf("batch: heading %d not in %v", heading, a.cfg.Headings))
	}
	if len(a.cfg.Pitches) > 0 && !slices.Contains(a.cfg.Pitches, pitch) {
		return model.FormatError(path, eris.Errorf("batch: pitch %d not in %v", pitch, a.cfg.Pitches))
	}
	return nil
}
