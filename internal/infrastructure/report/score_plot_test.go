package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"track-bot/internal/domain/entity"
)

func records() []entity.TrackRecord {
	return []entity.TrackRecord{
		{Frame: 0, Score: 1, BBox: entity.Rect{X: 1, Y: 2, Width: 3, Height: 4}},
		{Frame: 1, Score: 0.5},
		{Frame: 2, Score: 0.75, BBox: entity.Rect{X: 10, Y: 20, Width: 30, Height: 40}},
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(records())
	require.NoError(t, err)
	require.Equal(t, 3, s.Frames)
	require.InDelta(t, 0.75, s.MeanScore, 1e-12)
	require.Equal(t, 0.5, s.MinScore)
	require.Equal(t, entity.Rect{X: 10, Y: 20, Width: 30, Height: 40}, s.LastBox)
	require.Contains(t, s.String(), "Кадров: 3")

	_, err = Summarize(nil)
	require.Error(t, err)
}

func TestScorePlotIsPNG(t *testing.T) {
	png, err := ScorePlot(records())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))

	_, err = ScorePlot(nil)
	require.Error(t, err)
}

func TestRendererRender(t *testing.T) {
	text, chart, err := Renderer{}.Render(records())
	require.NoError(t, err)
	require.Contains(t, text, "Средняя уверенность: 0.75")
	require.NotEmpty(t, chart)

	_, _, err = Renderer{}.Render(nil)
	require.Error(t, err)
}
