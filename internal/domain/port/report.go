package port

import "track-bot/internal/domain/entity"

// ReportRenderer строит отчёт по истории сессии
type ReportRenderer interface {
	// Render возвращает текстовую сводку и PNG-график
	Render(records []entity.TrackRecord) (summary string, chart []byte, err error)
}
