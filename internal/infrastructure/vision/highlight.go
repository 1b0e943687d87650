package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
)

var (
	boxColor   = color.RGBA{G: 255, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// NativeHighlighter рисует рамку цели и уверенность без OpenCV
type NativeHighlighter struct {
	Thickness int
	Quality   int
}

// NewNativeHighlighter создаёт отрисовщик с рамкой в 2 px и JPEG качества 90
func NewNativeHighlighter() *NativeHighlighter {
	return &NativeHighlighter{Thickness: 2, Quality: 90}
}

// HighlightTrack возвращает JPEG с рамкой и подписью score
func (h *NativeHighlighter) HighlightTrack(imageData []byte, result entity.TrackResult) ([]byte, error) {
	src, err := DecodeFrame(imageData)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, image.Point{}, draw.Src)

	rect := pixelRect(result.BBox)
	strokeRect(img, rect, h.Thickness, boxColor)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(rect.Min.X+h.Thickness+2, rect.Min.Y+h.Thickness+13),
	}
	d.DrawString(scoreLabel(result.Score))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: h.Quality}); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// pixelRect округляет рамку до целых пикселей
func pixelRect(r entity.Rect) image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.Width)), y0+int(math.Round(r.Height)))
}

// strokeRect рисует контур толщиной t внутрь прямоугольника; части вне кадра отсекаются
func strokeRect(img *image.RGBA, r image.Rectangle, t int, c color.Color) {
	if t < 1 {
		t = 1
	}
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}

func scoreLabel(score float64) string {
	return fmt.Sprintf("score %.2f", score)
}

var _ port.TrackHighlighter = (*NativeHighlighter)(nil)
