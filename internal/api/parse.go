package telegram

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"track-bot/internal/domain/entity"
	"track-bot/internal/tracker"
)

// maxPhotoSide наибольшая сторона фото, которое Telegram отдаёт боту
const maxPhotoSide = 2560

// parseBox разбирает подпись вида "x,y,w,h" (допускаются пробелы и ';')
func parseBox(caption string) (entity.Rect, error) {
	fields := strings.FieldsFunc(caption, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) != 4 {
		return entity.Rect{}, errors.Errorf("want 4 numbers x,y,w,h, got %d", len(fields))
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return entity.Rect{}, errors.Wrapf(err, "field %d", i+1)
		}
		v[i] = n
	}
	box := entity.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if box.Empty() {
		return entity.Rect{}, errors.New("width and height must be positive")
	}
	// точная проверка по размеру кадра выполняется трекером
	if err := tracker.CheckBox(box, maxPhotoSide, maxPhotoSide); err != nil {
		return entity.Rect{}, err
	}
	return box, nil
}
