package tracker

import (
	"math"

	"track-bot/internal/domain/entity"
)

// contextSize сторона квадратного контекстного окна вокруг объекта размера s
func contextSize(s entity.Size, amount float64) float64 {
	ctx := amount * (s.W + s.H)
	return math.Sqrt((s.W + ctx) * (s.H + ctx))
}

// updateState переводит выбранную рамку в масштаб кадра и смешивает её с прошлым состоянием
func updateState(cfg Config, center entity.Point, size entity.Size, scaleZ float64, sel selection) (entity.Point, entity.Size) {
	cx := sel.Box.CX / scaleZ
	cy := sel.Box.CY / scaleZ
	w := sel.Box.W / scaleZ
	h := sel.Box.H / scaleZ

	lr := sel.Penalty * sel.Score * cfg.LR
	next := entity.Point{X: center.X + cx, Y: center.Y + cy}
	nextSize := entity.Size{
		W: size.W*(1-lr) + w*lr,
		H: size.H*(1-lr) + h*lr,
	}
	return next, nextSize
}

// clip удерживает центр внутри кадра, а размер в пределах [MinSize, сторона кадра]
func clip(center entity.Point, size entity.Size, width, height int, minSize float64) (entity.Point, entity.Size) {
	fw, fh := float64(width), float64(height)
	c := entity.Point{
		X: math.Max(0, math.Min(center.X, fw)),
		Y: math.Max(0, math.Min(center.Y, fh)),
	}
	s := entity.Size{
		W: math.Max(minSize, math.Min(size.W, fw)),
		H: math.Max(minSize, math.Min(size.H, fh)),
	}
	return c, s
}
