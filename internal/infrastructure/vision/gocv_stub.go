//go:build !gocv
// +build !gocv

package vision

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"track-bot/internal/domain/entity"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// GoCVExtractor заглушка для сборки без OpenCV
type GoCVExtractor struct{}

// NewGoCVExtractor создаёт экстрактор-заглушку (без OpenCV)
func NewGoCVExtractor() *GoCVExtractor {
	return &GoCVExtractor{}
}

// Extract возвращает ошибку, если сборка без тега gocv
func (e *GoCVExtractor) Extract(frame *image.RGBA, pos entity.Point, modelSz, originalSz int, fill color.RGBA) (*image.RGBA, error) {
	return nil, errNoGoCV
}

// GoCVHighlighter заглушка для сборки без OpenCV
type GoCVHighlighter struct {
	Thickness int
	Quality   int
}

// NewGoCVHighlighter создаёт отрисовщик-заглушку
func NewGoCVHighlighter() *GoCVHighlighter {
	return &GoCVHighlighter{Thickness: 2, Quality: 90}
}

// HighlightTrack возвращает ошибку, если сборка без тега gocv
func (h *GoCVHighlighter) HighlightTrack(imageData []byte, result entity.TrackResult) ([]byte, error) {
	return nil, errNoGoCV
}

// GoCVEnabled сообщает, собран ли пакет с OpenCV
func GoCVEnabled() bool { return false }
