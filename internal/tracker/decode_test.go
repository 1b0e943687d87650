package tracker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"track-bot/internal/domain/entity"
)

func TestDecodeScoresEqualLogitsIsHalf(t *testing.T) {
	cls := entity.NewTensor(2, 2, 2)
	for i, v := range []float32{-3, 0, 7.5, 1e4} {
		cls.Data[i] = v
		cls.Data[4+i] = v
	}
	scores, err := decodeScores(cls, 2)
	require.NoError(t, err)
	for _, s := range scores {
		require.Equal(t, 0.5, s)
	}
}

func TestDecodeScoresBoundedForExtremeLogits(t *testing.T) {
	cls := entity.NewTensor(1, 2, 2, 2)
	copy(cls.Data, []float32{
		1e30, -1e30, 0, 88, // фон
		-1e30, 1e30, 0, -88, // объект
	})
	scores, err := decodeScores(cls, 2)
	require.NoError(t, err)
	require.Len(t, scores, 4)
	for _, s := range scores {
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}
	require.Equal(t, 0.0, scores[0])
	require.Equal(t, 1.0, scores[1])
	require.Equal(t, 0.5, scores[2])
}

func TestDecodeScoresRejectsShapes(t *testing.T) {
	cases := map[string]entity.Tensor{
		"channels": entity.NewTensor(3, 4, 4),
		"spatial":  entity.NewTensor(2, 4, 5),
		"batch":    entity.NewTensor(2, 2, 4, 4),
		"rank":     entity.NewTensor(2, 16),
		"data":     {Shape: []int{2, 4, 4}, Data: make([]float32, 31)},
	}
	for name, cls := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeScores(cls, 4)
			var ie *InferenceError
			require.True(t, errors.As(err, &ie), "got %v", err)
			require.Equal(t, "decode", ie.Op)
		})
	}
}

func TestDecodeBoxesUniformDistance(t *testing.T) {
	const size, d = 16, 9.5
	points := Points(16, size)
	reg := entity.NewTensor(1, 4, size, size)
	for i := range reg.Data {
		reg.Data[i] = d
	}
	boxes, err := decodeBoxes(reg, points, size)
	require.NoError(t, err)
	require.Len(t, boxes, size*size)
	for i, b := range boxes {
		require.Equal(t, 2*d, b.W)
		require.Equal(t, 2*d, b.H)
		require.Equal(t, points[i].X, b.CX)
		require.Equal(t, points[i].Y, b.CY)
	}
}

func TestDecodeBoxesKeepsInvertedBoxes(t *testing.T) {
	points := Points(8, 1)
	reg := entity.Tensor{Shape: []int{4, 1, 1}, Data: []float32{-5, 2, -1, 2}}
	boxes, err := decodeBoxes(reg, points, 1)
	require.NoError(t, err)
	// left = 0+5, right = 0-1 → ширина -6
	require.Equal(t, -6.0, boxes[0].W)
	require.Equal(t, 4.0, boxes[0].H)
	require.Equal(t, 2.0, boxes[0].CX)
}

func TestDecodeBoxesRejectsShapes(t *testing.T) {
	points := Points(16, 4)
	_, err := decodeBoxes(entity.NewTensor(2, 4, 4), points, 4)
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))

	_, err = decodeBoxes(entity.NewTensor(4, 4, 4), Points(16, 3), 4)
	require.True(t, errors.As(err, &ie))
}
