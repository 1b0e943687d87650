package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"track-bot/internal/domain/entity"
)

func TestClipSize(t *testing.T) {
	const width, height = 480, 270
	_, s := clip(entity.Point{X: 10, Y: 10}, entity.Size{W: width * 2, H: 1}, width, height, 10)
	require.Equal(t, float64(width), s.W)
	require.Equal(t, 10.0, s.H)

	_, s = clip(entity.Point{}, entity.Size{W: 1, H: height * 3}, width, height, 10)
	require.Equal(t, 10.0, s.W)
	require.Equal(t, float64(height), s.H)
}

func TestClipCenter(t *testing.T) {
	c, _ := clip(entity.Point{X: -5, Y: 400}, entity.Size{W: 20, H: 20}, 480, 270, 10)
	require.Equal(t, entity.Point{X: 0, Y: 270}, c)

	c, _ = clip(entity.Point{X: 600, Y: -1}, entity.Size{W: 20, H: 20}, 480, 270, 10)
	require.Equal(t, entity.Point{X: 480, Y: 0}, c)
}

func TestUpdateStateEMA(t *testing.T) {
	cfg := DefaultConfig()
	sel := selection{
		Box:     candidate{CX: 20, CY: -10, W: 200, H: 100},
		Score:   1,
		Penalty: 1,
	}
	center, size := updateState(cfg, entity.Point{X: 100, Y: 100}, entity.Size{W: 50, H: 50}, 2, sel)
	require.Equal(t, entity.Point{X: 110, Y: 95}, center)
	lr := cfg.LR
	require.InDelta(t, 50*(1-lr)+100*lr, size.W, 1e-12)
	require.InDelta(t, 50*(1-lr)+50*lr, size.H, 1e-12)
}

func TestUpdateStateZeroConfidenceKeepsSize(t *testing.T) {
	sel := selection{Box: candidate{W: 500, H: 500}, Score: 0, Penalty: 1}
	_, size := updateState(DefaultConfig(), entity.Point{}, entity.Size{W: 30, H: 40}, 1, sel)
	require.Equal(t, entity.Size{W: 30, H: 40}, size)
}

func TestContextSize(t *testing.T) {
	// квадрат: w_z = h_z = 2w
	require.InDelta(t, 200.0, contextSize(entity.Size{W: 100, H: 100}, 0.5), 1e-12)
	require.InDelta(t, 100.0, contextSize(entity.Size{W: 100, H: 100}, 0), 1e-12)
}
