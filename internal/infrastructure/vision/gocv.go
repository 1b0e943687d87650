//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
	"track-bot/internal/tracker"
)

// GoCVExtractor вырезает контекстное окно средствами OpenCV:
// CopyMakeBorder с постоянным цветом, Region и билинейный Resize
type GoCVExtractor struct{}

// NewGoCVExtractor создаёт экстрактор на OpenCV
func NewGoCVExtractor() *GoCVExtractor {
	return &GoCVExtractor{}
}

// Extract реализует tracker.Extractor
func (e *GoCVExtractor) Extract(frame *image.RGBA, pos entity.Point, modelSz, originalSz int, fill color.RGBA) (*image.RGBA, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, tracker.ErrEmptyFrame
	}
	if modelSz <= 0 {
		return nil, errors.Errorf("model size must be positive, got %d", modelSz)
	}
	if originalSz < 1 {
		originalSz = 1
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, errors.Wrap(err, "frame to mat")
	}
	defer mat.Close()

	b := frame.Bounds()
	win := tracker.ContextWindow(pos, originalSz, b.Dx(), b.Dy())

	src := mat
	if win.Padded() {
		padded := gocv.NewMat()
		defer padded.Close()
		gocv.CopyMakeBorder(mat, &padded, win.Top, win.Bottom, win.Left, win.Right, gocv.BorderConstant, fill)
		src = padded
	}

	roi := win.Rect.Add(image.Pt(win.Left, win.Top))
	region := src.Region(roi)
	defer region.Close()

	out := gocv.NewMat()
	defer out.Close()
	if modelSz != originalSz {
		gocv.Resize(region, &out, image.Pt(modelSz, modelSz), 0, 0, gocv.InterpolationLinear)
	} else {
		region.CopyTo(&out)
	}

	img, err := out.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "mat to image")
	}
	return tracker.ToRGBA(img), nil
}

// GoCVHighlighter рисует рамку и уверенность средствами OpenCV
type GoCVHighlighter struct {
	Thickness int
	Quality   int
}

// NewGoCVHighlighter создаёт отрисовщик с рамкой в 2 px и JPEG качества 90
func NewGoCVHighlighter() *GoCVHighlighter {
	return &GoCVHighlighter{Thickness: 2, Quality: 90}
}

// HighlightTrack рисует прямоугольник цели и подпись score, возвращает JPEG
func (h *GoCVHighlighter) HighlightTrack(imageData []byte, result entity.TrackResult) ([]byte, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	rect := pixelRect(result.BBox)
	gocv.Rectangle(&mat, rect, boxColor, h.Thickness)
	gocv.PutText(&mat, scoreLabel(result.Score), image.Pt(rect.Min.X, rect.Min.Y-6),
		gocv.FontHersheySimplex, 0.6, boxColor, 2)

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "mat to image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: h.Quality}); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// decodeToMat превращает байты изображения в gocv.Mat
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to decode image")
}

// GoCVEnabled сообщает, собран ли пакет с OpenCV
func GoCVEnabled() bool { return true }

var (
	_ tracker.Extractor      = (*GoCVExtractor)(nil)
	_ port.TrackHighlighter = (*GoCVHighlighter)(nil)
)
