package tracker

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"track-bot/internal/domain/entity"
)

// Extractor вырезает квадратное окно вокруг позиции с дополнением цветом fill
// и приводит его к стороне modelSz. Исходный кадр не меняется.
type Extractor interface {
	Extract(frame *image.RGBA, pos entity.Point, modelSz, originalSz int, fill color.RGBA) (*image.RGBA, error)
}

// ContextRegion контекстное окно в координатах кадра и требуемые поля
type ContextRegion struct {
	Rect                     image.Rectangle
	Left, Top, Right, Bottom int
}

// Padded сообщает, выходит ли окно за границы кадра
func (w ContextRegion) Padded() bool {
	return w.Left > 0 || w.Top > 0 || w.Right > 0 || w.Bottom > 0
}

// ContextWindow считает окно стороны originalSz вокруг pos для кадра width×height.
// Минимальный край берётся как floor(pos - c + 0.5), c = (originalSz+1)/2.
func ContextWindow(pos entity.Point, originalSz, width, height int) ContextRegion {
	c := float64(originalSz+1) / 2
	xmin := int(math.Floor(pos.X - c + 0.5))
	ymin := int(math.Floor(pos.Y - c + 0.5))
	xmax := xmin + originalSz - 1
	ymax := ymin + originalSz - 1

	return ContextRegion{
		Rect:   image.Rect(xmin, ymin, xmin+originalSz, ymin+originalSz),
		Left:   maxInt(0, -xmin),
		Top:    maxInt(0, -ymin),
		Right:  maxInt(0, xmax-width+1),
		Bottom: maxInt(0, ymax-height+1),
	}
}

// NativeExtractor реализация на golang.org/x/image/draw с билинейным ресайзом
type NativeExtractor struct{}

// Extract вырезает окно; если окно выходит за кадр, недостающее заполняется fill
func (NativeExtractor) Extract(frame *image.RGBA, pos entity.Point, modelSz, originalSz int, fill color.RGBA) (*image.RGBA, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	if modelSz <= 0 {
		return nil, errors.Errorf("model size must be positive, got %d", modelSz)
	}
	if originalSz < 1 {
		originalSz = 1
	}

	b := frame.Bounds()
	win := ContextWindow(pos, originalSz, b.Dx(), b.Dy())
	if originalSz > modelSz {
		return scaleDown(frame, win, modelSz, originalSz, fill), nil
	}
	src := win.Rect.Add(b.Min)

	crop := image.NewRGBA(image.Rect(0, 0, originalSz, originalSz))
	if win.Padded() {
		draw.Draw(crop, crop.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}
	// draw.Draw сам обрезает источник по границам кадра, окно целиком вне кадра
	// остаётся залитым fill
	draw.Draw(crop, crop.Bounds(), frame, src.Min, draw.Src)

	if modelSz == originalSz {
		return crop, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, modelSz, modelSz))
	draw.BiLinear.Scale(out, out.Bounds(), crop, crop.Bounds(), draw.Src, nil)
	return out, nil
}

// scaleDown уменьшает окно сразу в кроп modelSz×modelSz: заливает его fill
// и масштабирует в соответствующую часть только пересечение окна с кадром.
// Промежуточный холст originalSz×originalSz не создаётся.
func scaleDown(frame *image.RGBA, win ContextRegion, modelSz, originalSz int, fill color.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, modelSz, modelSz))
	if win.Padded() {
		draw.Draw(out, out.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}

	b := frame.Bounds()
	overlap := win.Rect.Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
	if overlap.Empty() {
		return out
	}
	scale := float64(modelSz) / float64(originalSz)
	toOut := func(v, origin int) int {
		return int(math.Round(float64(v-origin) * scale))
	}
	dst := image.Rect(
		toOut(overlap.Min.X, win.Rect.Min.X), toOut(overlap.Min.Y, win.Rect.Min.Y),
		toOut(overlap.Max.X, win.Rect.Min.X), toOut(overlap.Max.Y, win.Rect.Min.Y),
	)
	if dst.Empty() {
		return out
	}
	draw.BiLinear.Scale(out, dst, frame, overlap.Add(b.Min), draw.Src, nil)
	return out
}

// ToRGBA приводит кадр к *image.RGBA с началом координат в (0,0)
func ToRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// ChannelAverage среднее значение каналов R, G, B по всему кадру
func ChannelAverage(frame *image.RGBA) [3]float64 {
	var sum [3]float64
	b := frame.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return sum
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := frame.Pix[frame.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			sum[0] += float64(row[x*4])
			sum[1] += float64(row[x*4+1])
			sum[2] += float64(row[x*4+2])
		}
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}

// FillColor округляет средние значения каналов до цвета заливки
func FillColor(avg [3]float64) color.RGBA {
	return color.RGBA{
		R: roundByte(avg[0]),
		G: roundByte(avg[1]),
		B: roundByte(avg[2]),
		A: 0xff,
	}
}

func roundByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
