package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/streetcover/internal/batch"
	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/store"
	"github.com/sells-group/streetcover/internal/summary"
)

func writeCapture(t *testing.T, dir, name string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func newCmdTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cmd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRunClassify_RecordsRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := t.TempDir()
	writeCapture(t, dir, "A_0_0.jpg", color.NRGBA{G: 255, A: 255})
	writeCapture(t, dir, "A_60_0.jpg", color.NRGBA{A: 255})
	writeCapture(t, dir, "bad.jpg", color.NRGBA{A: 255})

	st := newCmdTestStore(t)
	rep, err := runClassify(ctx, st, classifyOptions{
		Dir:    dir,
		OutDir: out,
		Batch:  batch.Config{Suffix: ".jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunCounts{Images: 3, Observed: 2, Skipped: 1}, rep.Counts)
	assert.Equal(t, 1, rep.Sites)
	require.NotEmpty(t, rep.RunID)
	assert.FileExists(t, rep.Artifacts.RawPath)
	assert.FileExists(t, rep.Artifacts.SummaryPath)
	assert.FileExists(t, rep.Artifacts.SkipPath)
	assert.Empty(t, rep.Artifacts.WorkbookPath)

	run, err := st.GetRun(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2, run.Observed)

	obs, err := st.ListObservations(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Len(t, obs, 2)

	skips, err := st.ListSkips(ctx, rep.RunID)
	require.NoError(t, err)
	require.Len(t, skips, 1)
	assert.Equal(t, model.ErrorKindFormat, skips[0].Kind)

	means, err := os.ReadFile(rep.Artifacts.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, "SID,pitch,per_green,per_sky\nA,0,50.0,0.0\n", string(means))
}

func TestRunClassify_NoStore(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "A_0_0.jpg", color.NRGBA{B: 255, A: 255})

	rep, err := runClassify(context.Background(), nil, classifyOptions{
		Dir:     dir,
		OutDir:  dir,
		Batch:   batch.Config{Suffix: ".jpg"},
		Persist: batch.PersistOptions{Workbook: true},
	})
	require.NoError(t, err)
	assert.Empty(t, rep.RunID)
	assert.FileExists(t, rep.Artifacts.WorkbookPath)
}

func TestRunClassify_FatalMarksRunFailed(t *testing.T) {
	ctx := context.Background()
	st := newCmdTestStore(t)

	_, err := runClassify(ctx, st, classifyOptions{
		Dir:    filepath.Join(t.TempDir(), "missing"),
		OutDir: t.TempDir(),
		Batch:  batch.Config{Suffix: ".jpg"},
	})
	require.Error(t, err)

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].Error)
}

func TestRunClassify_EmptyDirFails(t *testing.T) {
	_, err := runClassify(context.Background(), nil, classifyOptions{
		Dir:    t.TempDir(),
		OutDir: t.TempDir(),
		Batch:  batch.Config{Suffix: ".jpg"},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, batch.ErrNoImages))
}

func TestRunClassify_DuplicateKeyKeepsStoreInStep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeCapture(t, dir, "A_0_0.jpg", color.NRGBA{G: 255, A: 255})
	writeCapture(t, dir, "A_0_0.JPG", color.NRGBA{A: 255})

	st := newCmdTestStore(t)
	rep, err := runClassify(ctx, st, classifyOptions{
		Dir:    dir,
		OutDir: t.TempDir(),
		Batch:  batch.Config{Suffix: ".jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunCounts{Images: 2, Observed: 1, Skipped: 1}, rep.Counts)

	obs, err := st.ListObservations(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Len(t, obs, rep.Counts.Observed)

	means, err := os.ReadFile(rep.Artifacts.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, "SID,pitch,per_green,per_sky\nA,0,0.0,0.0\n", string(means))

	stored := summary.Summarize(obs)
	require.Len(t, stored, 1)
	assert.InDelta(t, 0.0, stored[0].PerGreen, 1e-9)
}
