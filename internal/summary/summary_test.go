package summary

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/streetcover/internal/model"
)

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	rows := Summarize(nil)
	assert.Empty(t, rows)
}

func TestSummarize_TwoRows(t *testing.T) {
	t.Parallel()

	obs := []model.Observation{
		{SID: "A", Heading: "0", Pitch: "0", PerGreen: 100, PerSky: 20},
		{SID: "A", Heading: "60", Pitch: "0", PerGreen: 0, PerSky: 40},
	}

	rows := Summarize(obs)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].SID)
	assert.Equal(t, "0", rows[0].Pitch)
	assert.Equal(t, 50.0, rows[0].PerGreen)
	assert.Equal(t, 30.0, rows[0].PerSky)
	assert.Equal(t, 2, rows[0].Headings)
}

func TestSummarize_DuplicateChangesMean(t *testing.T) {
	t.Parallel()

	obs := []model.Observation{
		{SID: "A", Heading: "0", Pitch: "45", PerGreen: 10, PerSky: 0},
		{SID: "A", Heading: "60", Pitch: "45", PerGreen: 20, PerSky: 0},
	}
	rows := Summarize(obs)
	require.Len(t, rows, 1)
	assert.Equal(t, 15.0, rows[0].PerGreen)

	obs = append(obs, model.Observation{SID: "A", Heading: "60", Pitch: "45", PerGreen: 60, PerSky: 90})
	rows = Summarize(obs)
	require.Len(t, rows, 1)
	assert.Equal(t, 30.0, rows[0].PerGreen)
	assert.Equal(t, 30.0, rows[0].PerSky)
	assert.Equal(t, 3, rows[0].Headings)
}

func TestSummarize_Idempotent(t *testing.T) {
	t.Parallel()

	obs := []model.Observation{
		{SID: "B", Heading: "0", Pitch: "90", PerGreen: 1, PerSky: 2},
		{SID: "A", Heading: "0", Pitch: "0", PerGreen: 3, PerSky: 4},
		{SID: "A", Heading: "60", Pitch: "-45", PerGreen: 5, PerSky: 6},
	}
	snapshot := append([]model.Observation(nil), obs...)

	first := Summarize(obs)
	second := Summarize(obs)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, obs, "input must not be reordered")
}

func TestSummarize_Ordering(t *testing.T) {
	t.Parallel()

	obs := []model.Observation{
		{SID: "B", Heading: "0", Pitch: "90"},
		{SID: "A", Heading: "0", Pitch: "90"},
		{SID: "A", Heading: "0", Pitch: "45"},
		{SID: "A", Heading: "0", Pitch: "0"},
		{SID: "A", Heading: "0", Pitch: "-45"},
	}

	rows := Summarize(obs)
	var got [][2]string
	for _, r := range rows {
		got = append(got, [2]string{r.SID, r.Pitch})
	}
	assert.Equal(t, [][2]string{
		{"A", "-45"}, {"A", "0"}, {"A", "45"}, {"A", "90"}, {"B", "90"},
	}, got)
}

func TestPitchLess(t *testing.T) {
	t.Parallel()

	assert.True(t, PitchLess("-45", "0"))
	assert.True(t, PitchLess("9", "45"))
	assert.False(t, PitchLess("90", "45"))
	assert.True(t, PitchLess("10", "x"), "mixed falls back to lexical")
}

func TestFromCSV(t *testing.T) {
	t.Parallel()

	input := "SID,heading,pitch,per_green,per_sky\n" +
		"A,0,0,100.0,10.0\n" +
		"A,60,0,0.0,30.0\n" +
		"B,0,90,20.0,40.0\n"

	rows, err := FromCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.SummaryRow{SID: "A", Pitch: "0", PerGreen: 50, PerSky: 20, Headings: 2}, rows[0])
	assert.Equal(t, model.SummaryRow{SID: "B", Pitch: "90", PerGreen: 20, PerSky: 40, Headings: 1}, rows[1])
}

func TestFromCSV_Invalid(t *testing.T) {
	t.Parallel()

	_, err := FromCSV(context.Background(), strings.NewReader("SID,pitch\nA,0\n"))
	assert.Error(t, err)
}
