package tracker

import (
	"math"

	"track-bot/internal/domain/entity"
)

// candidate кандидатная рамка в центральной форме, в пикселях кропа
type candidate struct {
	CX, CY, W, H float64
}

// planes проверяет форму [C,H,W] или [1,C,H,W] и возвращает размер одной плоскости
func planes(t entity.Tensor, channels, size int, name string) (int, error) {
	shape := t.Shape
	if len(shape) == 4 {
		if shape[0] != 1 {
			return 0, shapeErr("%s tensor batch must be 1, got shape %v", name, t.Shape)
		}
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return 0, shapeErr("%s tensor must be [%d,H,W], got shape %v", name, channels, t.Shape)
	}
	if shape[0] != channels {
		return 0, shapeErr("%s tensor must have %d channels, got shape %v", name, channels, t.Shape)
	}
	if shape[1] != size || shape[2] != size {
		return 0, shapeErr("%s tensor spatial size must be %dx%d, got shape %v", name, size, size, t.Shape)
	}
	plane := size * size
	if len(t.Data) != channels*plane {
		return 0, shapeErr("%s tensor has %d values, want %d", name, len(t.Data), channels*plane)
	}
	return plane, nil
}

// decodeScores переводит логиты [2,H,W] (фон, объект) в вероятность объекта по каждой точке
func decodeScores(cls entity.Tensor, size int) ([]float64, error) {
	plane, err := planes(cls, 2, size, "classification")
	if err != nil {
		return nil, err
	}
	scores := make([]float64, plane)
	for i := range scores {
		bg := float64(cls.Data[i])
		fg := float64(cls.Data[plane+i])
		m := math.Max(bg, fg)
		eb := math.Exp(bg - m)
		ef := math.Exp(fg - m)
		scores[i] = ef / (eb + ef)
	}
	return scores, nil
}

// decodeBoxes переводит расстояния до краёв (left, top, right, bottom) в рамки центральной формы.
// Вывернутые рамки с отрицательной шириной или высотой сохраняются как есть.
func decodeBoxes(reg entity.Tensor, points []entity.Point, size int) ([]candidate, error) {
	plane, err := planes(reg, 4, size, "regression")
	if err != nil {
		return nil, err
	}
	if len(points) != plane {
		return nil, shapeErr("point grid has %d points, regression plane has %d", len(points), plane)
	}
	boxes := make([]candidate, plane)
	for i, p := range points {
		left := p.X - float64(reg.Data[i])
		top := p.Y - float64(reg.Data[plane+i])
		right := p.X + float64(reg.Data[2*plane+i])
		bottom := p.Y + float64(reg.Data[3*plane+i])
		boxes[i] = candidate{
			CX: (left + right) / 2,
			CY: (top + bottom) / 2,
			W:  right - left,
			H:  bottom - top,
		}
	}
	return boxes, nil
}
