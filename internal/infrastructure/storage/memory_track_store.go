package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
)

// MemoryTrackStore хранилище результатов в памяти, если база не настроена
type MemoryTrackStore struct {
	mu       sync.RWMutex
	sessions map[string]map[int]entity.TrackRecord
}

// NewMemoryTrackStore создаёт пустое хранилище
func NewMemoryTrackStore() *MemoryTrackStore {
	return &MemoryTrackStore{sessions: make(map[string]map[int]entity.TrackRecord)}
}

// SaveRecord сохраняет результат кадра; повторная запись того же кадра заменяет прежнюю
func (s *MemoryTrackStore) SaveRecord(ctx context.Context, rec entity.TrackRecord) error {
	if rec.SessionID == "" {
		return errors.New("track record has no session id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	frames, ok := s.sessions[rec.SessionID]
	if !ok {
		frames = make(map[int]entity.TrackRecord)
		s.sessions[rec.SessionID] = frames
	}
	frames[rec.Frame] = rec
	return nil
}

// History возвращает записи сессии по возрастанию номера кадра
func (s *MemoryTrackStore) History(ctx context.Context, sessionID string) ([]entity.TrackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frames := s.sessions[sessionID]
	out := make([]entity.TrackRecord, 0, len(frames))
	for _, rec := range frames {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out, nil
}

var _ port.TrackStore = (*MemoryTrackStore)(nil)
