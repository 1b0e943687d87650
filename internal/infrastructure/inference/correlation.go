package inference

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
	"track-bot/internal/tracker"
)

// Correlation CPU-бэкенд без модели: признаки кропа это средняя яркость клеток,
// отклик головы это нормированная взаимная корреляция шаблона с поисковой областью.
type Correlation struct {
	Cell       int     // сторона клетки признаков, px
	Gain       float64 // множитель корреляции в логите объекта
	HalfExtent float32 // расстояние до каждого края рамки в регрессии, px кропа

	stride    int
	scoreSize int
}

// NewCorrelation создаёт бэкенд для сетки точек трекера с константами cfg
func NewCorrelation(cfg tracker.Config) (*Correlation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Correlation{
		Cell:       8,
		Gain:       6,
		HalfExtent: float32(cfg.ExemplarSize) / 4,
		stride:     cfg.Stride,
		scoreSize:  cfg.ScoreSize(),
	}
	if cfg.Stride%c.Cell != 0 {
		return nil, errors.Errorf("stride %d is not a multiple of cell %d", cfg.Stride, c.Cell)
	}
	return c, nil
}

// Embed считает карту признаков [1,N,N], N = сторона кропа / Cell
func (c *Correlation) Embed(ctx context.Context, patch entity.Patch) (entity.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return entity.Tensor{}, err
	}
	if patch.Image == nil {
		return entity.Tensor{}, errors.New("patch has no image")
	}
	b := patch.Image.Bounds()
	n := b.Dx() / c.Cell
	if n == 0 || b.Dx() != b.Dy() {
		return entity.Tensor{}, errors.Errorf("patch %v is not a square of at least one cell", b)
	}

	out := entity.NewTensor(1, n, n)
	area := float32(c.Cell * c.Cell)
	for cy := 0; cy < n; cy++ {
		for cx := 0; cx < n; cx++ {
			var sum float32
			for y := cy * c.Cell; y < (cy+1)*c.Cell; y++ {
				row := patch.Image.Pix[patch.Image.PixOffset(b.Min.X+cx*c.Cell, b.Min.Y+y):]
				for x := 0; x < c.Cell; x++ {
					px := row[x*4 : x*4+3]
					sum += 0.299*float32(px[0]) + 0.587*float32(px[1]) + 0.114*float32(px[2])
				}
			}
			out.Data[cy*n+cx] = sum / area
		}
	}
	return out, nil
}

// Infer сдвигает шаблон по поисковой карте в каждую точку сетки.
// Логит фона 0, логит объекта Gain·ncc; регрессия постоянна.
func (c *Correlation) Infer(ctx context.Context, template, search entity.Tensor) (entity.Tensor, entity.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return entity.Tensor{}, entity.Tensor{}, err
	}
	t, err := squareMap(template, "template")
	if err != nil {
		return entity.Tensor{}, entity.Tensor{}, err
	}
	s, err := squareMap(search, "search")
	if err != nil {
		return entity.Tensor{}, entity.Tensor{}, err
	}
	if s < t {
		return entity.Tensor{}, entity.Tensor{}, errors.Errorf("search map %d is smaller than template map %d", s, t)
	}

	tmpl := toFloat64(template.Data)
	floats.AddConst(-floats.Sum(tmpl)/float64(len(tmpl)), tmpl)
	tNorm := floats.Norm(tmpl, 2)

	size := c.scoreSize
	plane := size * size
	origin := -(size / 2) * c.stride
	cls := entity.NewTensor(1, 2, size, size)
	reg := entity.NewTensor(1, 4, size, size)
	win := make([]float64, t*t)

	for r := 0; r < size; r++ {
		oy := (origin + c.stride*r) / c.Cell
		for col := 0; col < size; col++ {
			ox := (origin + c.stride*col) / c.Cell
			c.window(search.Data, s, t, s/2+ox-t/2, s/2+oy-t/2, win)

			ncc := 0.0
			if wNorm := floats.Norm(win, 2); wNorm > 0 && tNorm > 0 {
				ncc = floats.Dot(tmpl, win) / (tNorm * wNorm)
			}
			i := r*size + col
			cls.Data[plane+i] = float32(c.Gain * ncc)
			for k := 0; k < 4; k++ {
				reg.Data[k*plane+i] = c.HalfExtent
			}
		}
	}
	return cls, reg, nil
}

// window копирует окно t×t поисковой карты с левым верхним углом (x0,y0) и вычитает среднее.
// Клетки за границей карты принимают среднее значение окна.
func (c *Correlation) window(data []float32, s, t, x0, y0 int, dst []float64) {
	var sum float64
	inside := 0
	for y := 0; y < t; y++ {
		for x := 0; x < t; x++ {
			sx, sy := x0+x, y0+y
			if sx < 0 || sy < 0 || sx >= s || sy >= s {
				dst[y*t+x] = math.NaN()
				continue
			}
			v := float64(data[sy*s+sx])
			dst[y*t+x] = v
			sum += v
			inside++
		}
	}
	mean := 0.0
	if inside > 0 {
		mean = sum / float64(inside)
	}
	for i, v := range dst {
		if math.IsNaN(v) {
			dst[i] = 0
			continue
		}
		dst[i] = v - mean
	}
}

func squareMap(t entity.Tensor, name string) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, errors.Wrap(err, name)
	}
	shape := t.Shape
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 || shape[0] != shape[1] {
		return 0, errors.Errorf("%s map must be [1,N,N], got %v", name, t.Shape)
	}
	return shape[0], nil
}

func toFloat64(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

var _ port.InferenceBackend = (*Correlation)(nil)
