package port

import (
	"context"

	"track-bot/internal/domain/entity"
)

// TrackStore интерфейс хранилища результатов сопровождения
type TrackStore interface {
	// SaveRecord сохраняет результат одного кадра
	SaveRecord(ctx context.Context, rec entity.TrackRecord) error

	// History возвращает результаты сессии в порядке кадров
	History(ctx context.Context, sessionID string) ([]entity.TrackRecord, error)
}
