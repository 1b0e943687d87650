package app

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
	"track-bot/internal/tracker"
)

// ErrNoSession у пользователя нет активной или завершённой сессии
var ErrNoSession = errors.New("no tracking session")

// TrackerFactory создаёт новый трекер для сессии
type TrackerFactory func() (*tracker.Tracker, error)

// FrameDecoder декодирует фото в кадр
type FrameDecoder func(data []byte) (*image.RGBA, error)

// TrackOutput результат кадра и картинка с подсветкой
type TrackOutput struct {
	SessionID   string
	Frame       int
	Result      entity.TrackResult
	Highlighted []byte
}

// ReportOutput отчёт по сессии
type ReportOutput struct {
	SessionID string
	Summary   string
	Chart     []byte
}

type session struct {
	mu      sync.Mutex // сериализует Init/Track одного трекера
	id      string
	userID  int64
	tracker *tracker.Tracker
	frame   int
}

// TrackingService ведёт по одной сессии сопровождения на пользователя
type TrackingService struct {
	users       *UserService
	newTracker  TrackerFactory
	decode      FrameDecoder
	store       port.TrackStore
	highlighter port.TrackHighlighter
	renderer    port.ReportRenderer
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*session
	last     map[int64]string
}

// NewTrackingService создаёт сервис сопровождения. highlighter может быть nil.
func NewTrackingService(
	users *UserService,
	newTracker TrackerFactory,
	decode FrameDecoder,
	store port.TrackStore,
	highlighter port.TrackHighlighter,
	renderer port.ReportRenderer,
	logger *zap.Logger,
) *TrackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingService{
		users:       users,
		newTracker:  newTracker,
		decode:      decode,
		store:       store,
		highlighter: highlighter,
		renderer:    renderer,
		logger:      logger,
		sessions:    make(map[int64]*session),
		last:        make(map[int64]string),
	}
}

// Start инициализирует новую сессию по первому кадру и рамке цели.
// Предыдущая сессия пользователя завершается.
func (s *TrackingService) Start(ctx context.Context, userID, chatID int64, photo []byte, box entity.Rect) (*TrackOutput, error) {
	frame, err := s.decode(photo)
	if err != nil {
		return nil, err
	}
	tr, err := s.newTracker()
	if err != nil {
		return nil, errors.Wrap(err, "create tracker")
	}
	if err := tr.Init(ctx, frame, box); err != nil {
		return nil, err
	}

	sess := &session{id: uuid.NewString(), userID: userID, tracker: tr}
	s.mu.Lock()
	s.sessions[userID] = sess
	s.last[userID] = sess.id
	s.mu.Unlock()

	if _, err := s.users.SetState(ctx, userID, chatID, entity.StateTracking); err != nil {
		return nil, err
	}

	res := entity.TrackResult{
		BBox:      box,
		Score:     1,
		BestIndex: -1,
	}
	s.logger.Info("tracking session started",
		zap.String("session", sess.id),
		zap.Int64("user", userID),
		zap.Float64("w", box.Width),
		zap.Float64("h", box.Height),
	)
	return s.finish(ctx, sess, 0, photo, res), nil
}

// TrackFrame сопровождает цель на очередном кадре активной сессии
func (s *TrackingService) TrackFrame(ctx context.Context, userID int64, photo []byte) (*TrackOutput, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	frame, err := s.decode(photo)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	res, err := sess.tracker.Track(ctx, frame)
	if err != nil {
		s.logger.Warn("track failed", zap.String("session", sess.id), zap.Error(err))
		return nil, err
	}
	sess.frame++
	return s.finish(ctx, sess, sess.frame, photo, res), nil
}

// finish сохраняет результат и рисует подсветку; сбои этих шагов не прерывают сопровождение
func (s *TrackingService) finish(ctx context.Context, sess *session, frame int, photo []byte, res entity.TrackResult) *TrackOutput {
	rec := entity.TrackRecord{
		SessionID: sess.id,
		UserID:    sess.userID,
		Frame:     frame,
		BBox:      res.BBox,
		Score:     res.Score,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		s.logger.Error("save track record", zap.String("session", sess.id), zap.Int("frame", frame), zap.Error(err))
	}

	var highlighted []byte
	if s.highlighter != nil {
		var err error
		highlighted, err = s.highlighter.HighlightTrack(photo, res)
		if err != nil {
			s.logger.Warn("highlight track", zap.String("session", sess.id), zap.Int("frame", frame), zap.Error(err))
		}
	}
	return &TrackOutput{SessionID: sess.id, Frame: frame, Result: res, Highlighted: highlighted}
}

// Stop завершает активную сессию и возвращает пользователя в главное меню
func (s *TrackingService) Stop(ctx context.Context, userID, chatID int64) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if _, err := s.users.Cancel(ctx, userID, chatID); err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoSession
	}
	s.logger.Info("tracking session stopped", zap.String("session", sess.id), zap.Int("frames", sess.frame+1))
	return sess.id, nil
}

// Report строит отчёт по активной или последней завершённой сессии
func (s *TrackingService) Report(ctx context.Context, userID int64) (*ReportOutput, error) {
	s.mu.Lock()
	id, ok := s.last[userID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	records, err := s.store.History(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, chart, err := s.renderer.Render(records)
	if err != nil {
		return nil, errors.Wrapf(err, "render report for session %s", id)
	}
	return &ReportOutput{SessionID: id, Summary: summary, Chart: chart}, nil
}
