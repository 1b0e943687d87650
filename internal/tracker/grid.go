package tracker

import (
	"gonum.org/v1/gonum/dsp/window"

	"track-bot/internal/domain/entity"
)

// Points строит решётку точек относительно центра кропа.
// Порядок row-major (строка снаружи, столбец внутри) совпадает с пространственной
// развёрткой тензоров головы.
func Points(stride, size int) []entity.Point {
	points := make([]entity.Point, 0, size*size)
	origin := -(size / 2) * stride
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			points = append(points, entity.Point{
				X: float64(origin + stride*x),
				Y: float64(origin + stride*y),
			})
		}
	}
	return points
}

// Window строит сепарабельное двумерное окно Ханна size×size в том же порядке, что и Points
func Window(size int) []float64 {
	if size <= 0 {
		return nil
	}
	axis := make([]float64, size)
	for i := range axis {
		axis[i] = 1
	}
	if size > 1 {
		// w[k] = 0.5*(1 - cos(2πk/(N-1)))
		window.Hann(axis)
	}

	weights := make([]float64, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			weights = append(weights, axis[y]*axis[x])
		}
	}
	return weights
}
