package entity

import "time"

// TrackResult результат сопровождения на одном кадре
type TrackResult struct {
	BBox      Rect    // рамка в форме (левый верхний угол, ширина, высота)
	Score     float64 // вероятность переднего плана в выбранной точке, без штрафов
	BestIndex int     // индекс выбранной точки сетки
}

// TrackRecord сохранённый результат кадра в рамках сессии
type TrackRecord struct {
	SessionID string
	UserID    int64
	Frame     int // номер кадра в сессии, 0 означает кадр инициализации
	BBox      Rect
	Score     float64
	CreatedAt time.Time
}
