package vision

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"

	"track-bot/internal/tracker"
)

// DecodeFrame декодирует JPEG или PNG в кадр RGBA с началом координат в (0,0)
func DecodeFrame(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	frame := tracker.ToRGBA(img)
	if frame.Bounds().Empty() {
		return nil, errors.Errorf("decoded %s image has no pixels", format)
	}
	return frame, nil
}
