// Package tracker реализует одиночный точечный сиамский трекер (NanoTrack):
// кроп поисковой области, декодирование сетки точек головы, штрафы за масштаб
// и пропорции, окно Ханна и EMA-обновление рамки.
package tracker

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
)

// State состояние сопровождения одной цели
type State struct {
	Center         entity.Point
	Size           entity.Size
	ChannelAverage [3]float64
	Template       entity.Tensor // эмбеддинг шаблона, заменяется целиком при повторном Init
}

// Result результат одного вызова Track
type Result = entity.TrackResult

// Observer получает длительность и итог каждого вызова Init и Track
type Observer interface {
	InitDone(elapsed time.Duration, err error)
	TrackDone(elapsed time.Duration, score float64, err error)
}

// Option настраивает Tracker
type Option func(*Tracker)

// WithLogger задаёт логгер
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithExtractor заменяет реализацию вырезания окна (например, на OpenCV)
func WithExtractor(e Extractor) Option {
	return func(t *Tracker) {
		if e != nil {
			t.extractor = e
		}
	}
}

// WithObserver подключает сбор метрик
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observer = o
	}
}

// Tracker сопровождает одну цель. Вызовы Init и Track должны быть сериализованы вызывающим.
type Tracker struct {
	cfg       Config
	embedder  port.Embedder
	head      port.Head
	extractor Extractor
	observer  Observer
	logger    *zap.Logger

	scoreSize int
	points    []entity.Point
	window    []float64

	state       State
	initialized bool
}

// New создаёт трекер. Сетка точек и окно Ханна строятся один раз.
func New(embedder port.Embedder, head port.Head, cfg Config, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil || head == nil {
		return nil, errors.New("tracker: embedder and head are required")
	}

	size := cfg.ScoreSize()
	t := &Tracker{
		cfg:       cfg,
		embedder:  embedder,
		head:      head,
		extractor: NativeExtractor{},
		logger:    zap.NewNop(),
		scoreSize: size,
		points:    Points(cfg.Stride, size),
		window:    Window(size),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config возвращает константы трекера
func (t *Tracker) Config() Config {
	return t.cfg
}

// State возвращает копию текущего состояния и признак инициализации
func (t *Tracker) State() (State, bool) {
	st := t.state
	st.Template = t.state.Template.Clone()
	return st, t.initialized
}

// CheckBox проверяет начальную рамку: конечные числа, положительный размер
// не больше кадра width×height и пересечение с кадром
func CheckBox(box entity.Rect, width, height int) error {
	for _, v := range []float64{box.X, box.Y, box.Width, box.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(ErrInvalidBox, "non-finite coordinate")
		}
	}
	if box.Empty() {
		return ErrInvalidBox
	}
	fw, fh := float64(width), float64(height)
	if box.Width > fw || box.Height > fh {
		return errors.Wrapf(ErrInvalidBox, "box %gx%g exceeds frame %dx%d", box.Width, box.Height, width, height)
	}
	if box.X >= fw || box.Y >= fh || box.X+box.Width <= 0 || box.Y+box.Height <= 0 {
		return errors.Wrapf(ErrInvalidBox, "box at (%g,%g) is outside frame %dx%d", box.X, box.Y, width, height)
	}
	return nil
}

// Init запоминает цель на первом кадре. При ошибке предыдущее состояние сохраняется.
func (t *Tracker) Init(ctx context.Context, frame image.Image, box entity.Rect) (err error) {
	started := time.Now()
	defer func() {
		if t.observer != nil {
			t.observer.InitDone(time.Since(started), err)
		}
	}()

	if box.Empty() {
		return ErrInvalidBox
	}
	img := ToRGBA(frame)
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyFrame
	}
	if err := CheckBox(box, img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return err
	}

	center := entity.Point{
		X: box.X + (box.Width-1)/2,
		Y: box.Y + (box.Height-1)/2,
	}
	size := box.Size()
	sz := int(math.Round(contextSize(size, t.cfg.ContextAmount)))
	avg := ChannelAverage(img)

	crop, err := t.extractor.Extract(img, center, t.cfg.ExemplarSize, sz, FillColor(avg))
	if err != nil {
		return errors.Wrap(err, "crop template")
	}
	emb, err := t.embedder.Embed(ctx, entity.Patch{Kind: entity.PatchTemplate, Image: crop})
	if err != nil {
		return inferenceErr("embed_template", err)
	}

	t.state = State{
		Center:         center,
		Size:           size,
		ChannelAverage: avg,
		Template:       emb.Clone(),
	}
	t.initialized = true

	t.logger.Debug("tracker initialized",
		zap.Float64("cx", center.X),
		zap.Float64("cy", center.Y),
		zap.Float64("w", size.W),
		zap.Float64("h", size.H),
		zap.Int("s_z", sz),
	)
	return nil
}

// Track находит цель на очередном кадре и обновляет состояние.
// При любой ошибке состояние остаётся прежним.
func (t *Tracker) Track(ctx context.Context, frame image.Image) (res Result, err error) {
	started := time.Now()
	defer func() {
		if t.observer != nil {
			t.observer.TrackDone(time.Since(started), res.Score, err)
		}
	}()

	if !t.initialized {
		return Result{}, &StateError{Reason: "track called before init"}
	}
	img := ToRGBA(frame)
	if img == nil || img.Bounds().Empty() {
		return Result{}, ErrEmptyFrame
	}

	prev := t.state
	sz := contextSize(prev.Size, t.cfg.ContextAmount)
	scaleZ := float64(t.cfg.ExemplarSize) / sz
	sx := sz * float64(t.cfg.InstanceSize) / float64(t.cfg.ExemplarSize)

	crop, err := t.extractor.Extract(img, prev.Center, t.cfg.InstanceSize, int(math.Round(sx)), FillColor(prev.ChannelAverage))
	if err != nil {
		return Result{}, errors.Wrap(err, "crop search region")
	}
	search, err := t.embedder.Embed(ctx, entity.Patch{Kind: entity.PatchSearch, Image: crop})
	if err != nil {
		return Result{}, inferenceErr("embed_search", err)
	}
	cls, reg, err := t.head.Infer(ctx, prev.Template, search)
	if err != nil {
		return Result{}, inferenceErr("infer", err)
	}

	scores, err := decodeScores(cls, t.scoreSize)
	if err != nil {
		return Result{}, err
	}
	boxes, err := decodeBoxes(reg, t.points, t.scoreSize)
	if err != nil {
		return Result{}, err
	}

	sel, ok := selectBest(t.cfg, prev.Size, scaleZ, scores, boxes, t.window)
	if !ok {
		return Result{}, &InferenceError{Op: "decode", Err: errors.New("no finite candidate")}
	}

	center, size := updateState(t.cfg, prev.Center, prev.Size, scaleZ, sel)
	b := img.Bounds()
	center, size = clip(center, size, b.Dx(), b.Dy(), t.cfg.MinSize)

	t.state.Center = center
	t.state.Size = size

	res = Result{
		BBox:      entity.RectFromCenter(center, size),
		Score:     sel.Score,
		BestIndex: sel.Index,
	}
	t.logger.Debug("frame tracked",
		zap.Int("best_idx", sel.Index),
		zap.Float64("score", sel.Score),
		zap.Float64("penalty", sel.Penalty),
		zap.Float64("cx", center.X),
		zap.Float64("cy", center.Y),
		zap.Float64("w", size.W),
		zap.Float64("h", size.H),
	)
	return res, nil
}

