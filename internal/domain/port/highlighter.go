package port

import "track-bot/internal/domain/entity"

// TrackHighlighter рисует результат сопровождения поверх кадра
type TrackHighlighter interface {
	// HighlightTrack создаёт изображение с рамкой цели и уверенностью
	HighlightTrack(imageData []byte, result entity.TrackResult) ([]byte, error)
}
