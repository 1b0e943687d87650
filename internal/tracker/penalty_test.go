package tracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"track-bot/internal/domain/entity"
)

func TestSelectBestNoMismatchHasNoPenalty(t *testing.T) {
	cfg := DefaultConfig()
	prev := entity.Size{W: 137, H: 226}
	scaleZ := float64(cfg.ExemplarSize) / contextSize(prev, cfg.ContextAmount)

	box := candidate{W: prev.W * scaleZ, H: prev.H * scaleZ}
	sel, ok := selectBest(cfg, prev, scaleZ, []float64{0.8}, []candidate{box}, []float64{1})
	require.True(t, ok)
	require.Equal(t, 0, sel.Index)
	require.InDelta(t, 1.0, sel.Penalty, 1e-12)
	require.Equal(t, 0.8, sel.Score)
}

func TestSelectBestPenalisesScaleChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowInfluence = 0
	prev := entity.Size{W: 50, H: 50}
	scaleZ := 1.0

	// одинаковая уверенность, но второй кандидат вдвое больше
	boxes := []candidate{{W: 100, H: 100}, {W: 50, H: 50}}
	sel, ok := selectBest(cfg, prev, scaleZ, []float64{0.9, 0.9}, boxes, []float64{0, 0})
	require.True(t, ok)
	require.Equal(t, 1, sel.Index)
	require.InDelta(t, 1.0, sel.Penalty, 1e-12)
}

func TestSelectBestPenalisesRatioChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowInfluence = 0
	prev := entity.Size{W: 40, H: 80}

	boxes := []candidate{{W: 80, H: 40}, {W: 40, H: 80}}
	sel, ok := selectBest(cfg, prev, 1, []float64{0.7, 0.7}, boxes, []float64{0, 0})
	require.True(t, ok)
	require.Equal(t, 1, sel.Index)
}

func TestSelectBestTieLowestIndex(t *testing.T) {
	cfg := DefaultConfig()
	prev := entity.Size{W: 20, H: 20}
	boxes := []candidate{{W: 20, H: 20}, {W: 20, H: 20}, {W: 20, H: 20}}
	sel, ok := selectBest(cfg, prev, 1, []float64{0.1, 0.6, 0.6}, boxes, []float64{0.5, 0.5, 0.5})
	require.True(t, ok)
	require.Equal(t, 1, sel.Index)
}

func TestSelectBestWindowInfluence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowInfluence = 1
	prev := entity.Size{W: 20, H: 20}
	boxes := []candidate{{W: 20, H: 20}, {W: 20, H: 20}}
	sel, ok := selectBest(cfg, prev, 1, []float64{1, 0}, boxes, []float64{0.2, 0.9})
	require.True(t, ok)
	require.Equal(t, 1, sel.Index)
	require.Equal(t, 0.0, sel.Score)
}

func TestSelectBestInvertedBoxNeverWinsOnNaN(t *testing.T) {
	cfg := DefaultConfig()
	prev := entity.Size{W: 20, H: 20}
	// отрицательная ширина даёт отрицательное подкоренное выражение → NaN
	boxes := []candidate{{W: -50, H: 20}, {W: 20, H: 20}}
	sel, ok := selectBest(cfg, prev, 1, []float64{1, 0.1}, boxes, []float64{1, 0})
	require.True(t, ok)
	require.Equal(t, 1, sel.Index)
}

func TestSelectBestNoFiniteCandidate(t *testing.T) {
	cfg := DefaultConfig()
	prev := entity.Size{W: 20, H: 20}
	boxes := []candidate{{W: -50, H: 20}}
	_, ok := selectBest(cfg, prev, 1, []float64{1}, boxes, []float64{1})
	require.False(t, ok)

	_, ok = selectBest(cfg, prev, 1, nil, nil, nil)
	require.False(t, ok)
}

func TestChangeIsSymmetric(t *testing.T) {
	require.Equal(t, 2.0, change(2))
	require.Equal(t, 2.0, change(0.5))
	require.Equal(t, 1.0, change(1))
	require.False(t, math.IsNaN(padScale(10, 10)))
}
