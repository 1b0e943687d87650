package tracker

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"track-bot/internal/domain/entity"
)

// fakeBackend отдаёт заранее заданные тензоры и запоминает вызовы
type fakeBackend struct {
	embedErr  error
	inferErr  error
	cls, reg  entity.Tensor
	embeds    []entity.Patch
	templates []entity.Tensor
}

func (f *fakeBackend) Embed(_ context.Context, p entity.Patch) (entity.Tensor, error) {
	f.embeds = append(f.embeds, p)
	if f.embedErr != nil {
		return entity.Tensor{}, f.embedErr
	}
	// эмбеддинг помечается номером вызова, чтобы отличать шаблоны
	return entity.Tensor{Shape: []int{1}, Data: []float32{float32(len(f.embeds))}}, nil
}

func (f *fakeBackend) Infer(_ context.Context, template, _ entity.Tensor) (entity.Tensor, entity.Tensor, error) {
	f.templates = append(f.templates, template)
	if f.inferErr != nil {
		return entity.Tensor{}, entity.Tensor{}, f.inferErr
	}
	return f.cls, f.reg, nil
}

type recordingObserver struct {
	inits, tracks int
	lastErr       error
}

func (o *recordingObserver) InitDone(_ time.Duration, err error) {
	o.inits++
	o.lastErr = err
}

func (o *recordingObserver) TrackDone(_ time.Duration, _ float64, err error) {
	o.tracks++
	o.lastErr = err
}

const (
	frameW = 480
	frameH = 270
)

var initBox = entity.Rect{X: 440, Y: 96, Width: 137, Height: 226}

// craftedHead строит выходы головы, у которых единственная уверенная точка находится в центре сетки,
// а все рамки совпадают с прошлым размером цели в масштабе кропа
func craftedHead(cfg Config, prev entity.Size, fgLogit float32) (cls, reg entity.Tensor, center int) {
	size := cfg.ScoreSize()
	plane := size * size
	center = (size/2)*size + size/2

	cls = entity.NewTensor(1, 2, size, size)
	for i := 0; i < plane; i++ {
		cls.Data[plane+i] = -10
	}
	cls.Data[plane+center] = fgLogit

	scaleZ := float64(cfg.ExemplarSize) / contextSize(prev, cfg.ContextAmount)
	hw := float32(prev.W * scaleZ / 2)
	hh := float32(prev.H * scaleZ / 2)
	reg = entity.NewTensor(1, 4, size, size)
	for i := 0; i < plane; i++ {
		reg.Data[i] = hw
		reg.Data[plane+i] = hh
		reg.Data[2*plane+i] = hw
		reg.Data[3*plane+i] = hh
	}
	return cls, reg, center
}

func newTestTracker(t *testing.T, backend *fakeBackend, opts ...Option) *Tracker {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	tr, err := New(backend, backend, DefaultConfig(), opts...)
	require.NoError(t, err)
	return tr
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseSize = -100
	_, err := New(&fakeBackend{}, &fakeBackend{}, cfg)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))

	_, err = New(nil, &fakeBackend{}, DefaultConfig())
	require.Error(t, err)
}

func TestDefaultScoreSize(t *testing.T) {
	require.Equal(t, 16, DefaultConfig().ScoreSize())
	require.NoError(t, DefaultConfig().Validate())
}

func TestTrackBeforeInit(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTracker(t, backend)

	_, err := tr.Track(context.Background(), gradientFrame(frameW, frameH))
	var se *StateError
	require.True(t, errors.As(err, &se))

	_, ok := tr.State()
	require.False(t, ok)
	require.Empty(t, backend.embeds)
}

func TestInitStoresState(t *testing.T) {
	backend := &fakeBackend{}
	obs := &recordingObserver{}
	tr := newTestTracker(t, backend, WithObserver(obs))

	require.NoError(t, tr.Init(context.Background(), gradientFrame(frameW, frameH), initBox))

	st, ok := tr.State()
	require.True(t, ok)
	require.Equal(t, entity.Point{X: 440 + 68, Y: 96 + 112.5}, st.Center)
	require.Equal(t, entity.Size{W: 137, H: 226}, st.Size)
	require.Equal(t, []float32{1}, st.Template.Data)

	// изменение возвращённой копии не затрагивает сохранённый шаблон
	st.Template.Data[0] = 42
	again, _ := tr.State()
	require.Equal(t, []float32{1}, again.Template.Data)

	require.Len(t, backend.embeds, 1)
	require.Equal(t, entity.PatchTemplate, backend.embeds[0].Kind)
	require.Equal(t, 127, backend.embeds[0].Size())
	require.Equal(t, 1, obs.inits)
}

func TestInitRejectsEmptyBox(t *testing.T) {
	tr := newTestTracker(t, &fakeBackend{})
	err := tr.Init(context.Background(), gradientFrame(frameW, frameH), entity.Rect{X: 1, Y: 1, Width: 0, Height: 5})
	require.ErrorIs(t, err, ErrInvalidBox)

	_, ok := tr.State()
	require.False(t, ok)
}

func TestInitRejectsBoxOutsideOrLargerThanFrame(t *testing.T) {
	cases := map[string]entity.Rect{
		"huge":      {X: 0, Y: 0, Width: 1e6, Height: 1e6},
		"wider":     {X: 0, Y: 0, Width: frameW + 1, Height: 10},
		"taller":    {X: 0, Y: 0, Width: 10, Height: frameH + 1},
		"right of":  {X: frameW, Y: 10, Width: 10, Height: 10},
		"below":     {X: 10, Y: frameH, Width: 10, Height: 10},
		"left of":   {X: -20, Y: 10, Width: 20, Height: 10},
		"above":     {X: 10, Y: -10, Width: 10, Height: 10},
		"nan width": {X: 10, Y: 10, Width: math.NaN(), Height: 10},
		"inf x":     {X: math.Inf(-1), Y: 10, Width: 10, Height: 10},
	}
	for name, box := range cases {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{}
			tr := newTestTracker(t, backend)
			err := tr.Init(context.Background(), gradientFrame(frameW, frameH), box)
			require.ErrorIs(t, err, ErrInvalidBox)
			require.Empty(t, backend.embeds)

			_, ok := tr.State()
			require.False(t, ok)
		})
	}

	// рамка, частично выходящая за кадр, допустима
	tr := newTestTracker(t, &fakeBackend{})
	require.NoError(t, tr.Init(context.Background(), gradientFrame(frameW, frameH),
		entity.Rect{X: -10, Y: frameH - 20, Width: 40, Height: 40}))
}

func TestInitEmbedFailureLeavesUninitialized(t *testing.T) {
	backend := &fakeBackend{embedErr: errors.New("device lost")}
	tr := newTestTracker(t, backend)

	err := tr.Init(context.Background(), gradientFrame(frameW, frameH), initBox)
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, "embed_template", ie.Op)

	_, ok := tr.State()
	require.False(t, ok)
}

func TestTrackSelectsCraftedCenter(t *testing.T) {
	cfg := DefaultConfig()
	cls, reg, center := craftedHead(cfg, initBox.Size(), 3)
	backend := &fakeBackend{cls: cls, reg: reg}
	tr := newTestTracker(t, backend)
	ctx := context.Background()

	require.NoError(t, tr.Init(ctx, gradientFrame(frameW, frameH), initBox))
	res, err := tr.Track(ctx, gradientFrame(frameW, frameH))
	require.NoError(t, err)

	require.Equal(t, 136, center)
	require.Equal(t, center, res.BestIndex)
	require.Equal(t, 1/(math.Exp(-3)+1), res.Score)

	// поисковый кроп INSTANCE_SIZE, голова получила сохранённый шаблон
	require.Len(t, backend.embeds, 2)
	require.Equal(t, entity.PatchSearch, backend.embeds[1].Kind)
	require.Equal(t, 255, backend.embeds[1].Size())
	require.Equal(t, []float32{1}, backend.templates[0].Data)

	// центр в x выходит за кадр и прижимается к правому краю, размер почти не меняется
	st, _ := tr.State()
	want := entity.Rect{
		X:      frameW - 137.0/2,
		Y:      96 + 112.5 - 226.0/2,
		Width:  137,
		Height: 226,
	}
	if diff := cmp.Diff(want, res.BBox, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Fatalf("bbox mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, float64(frameW), st.Center.X)
}

func TestTrackIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cls, reg, _ := craftedHead(cfg, initBox.Size(), 2)
	ctx := context.Background()
	frame := gradientFrame(frameW, frameH)

	run := func() Result {
		tr := newTestTracker(t, &fakeBackend{cls: cls, reg: reg})
		require.NoError(t, tr.Init(ctx, frame, initBox))
		res, err := tr.Track(ctx, frame)
		require.NoError(t, err)
		return res
	}
	require.Equal(t, run(), run())
}

func TestTrackEmbedFailureKeepsState(t *testing.T) {
	cfg := DefaultConfig()
	cls, reg, _ := craftedHead(cfg, initBox.Size(), 3)
	backend := &fakeBackend{cls: cls, reg: reg}
	obs := &recordingObserver{}
	tr := newTestTracker(t, backend, WithObserver(obs))
	ctx := context.Background()
	frame := gradientFrame(frameW, frameH)

	require.NoError(t, tr.Init(ctx, frame, initBox))
	_, err := tr.Track(ctx, frame)
	require.NoError(t, err)
	before, _ := tr.State()

	backend.embedErr = errors.New("embed timeout")
	_, err = tr.Track(ctx, frame)
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, "embed_search", ie.Op)
	require.ErrorIs(t, err, backend.embedErr)

	after, ok := tr.State()
	require.True(t, ok)
	require.Equal(t, before.Center, after.Center)
	require.Equal(t, before.Size, after.Size)
	require.Equal(t, 2, obs.tracks)
	require.Equal(t, err, obs.lastErr)
}

func TestTrackHeadFailureAndBadShapesKeepState(t *testing.T) {
	cfg := DefaultConfig()
	cls, reg, _ := craftedHead(cfg, initBox.Size(), 3)
	ctx := context.Background()
	frame := gradientFrame(frameW, frameH)

	cases := map[string]*fakeBackend{
		"infer error":   {cls: cls, reg: reg, inferErr: errors.New("head failed")},
		"cls shape":     {cls: entity.NewTensor(1, 2, 15, 15), reg: reg},
		"reg channels":  {cls: cls, reg: entity.NewTensor(1, 2, 16, 16)},
		"truncated reg": {cls: cls, reg: entity.Tensor{Shape: reg.Shape, Data: reg.Data[:100]}},
	}
	for name, backend := range cases {
		t.Run(name, func(t *testing.T) {
			tr := newTestTracker(t, backend)
			require.NoError(t, tr.Init(ctx, frame, initBox))
			before, _ := tr.State()

			_, err := tr.Track(ctx, frame)
			var ie *InferenceError
			require.True(t, errors.As(err, &ie), "got %v", err)

			after, _ := tr.State()
			require.Equal(t, before, after)
		})
	}
}

func TestReinitReplacesTemplate(t *testing.T) {
	cfg := DefaultConfig()
	cls, reg, _ := craftedHead(cfg, initBox.Size(), 3)
	backend := &fakeBackend{cls: cls, reg: reg}
	tr := newTestTracker(t, backend)
	ctx := context.Background()
	frame := gradientFrame(frameW, frameH)

	require.NoError(t, tr.Init(ctx, frame, initBox))
	_, err := tr.Track(ctx, frame)
	require.NoError(t, err)

	box := entity.Rect{X: 10, Y: 20, Width: 40, Height: 30}
	require.NoError(t, tr.Init(ctx, frame, box))
	st, ok := tr.State()
	require.True(t, ok)
	require.Equal(t, box.Size(), st.Size)
	// третий вызов эмбеддера даёт новый шаблон
	require.Equal(t, []float32{3}, st.Template.Data)
}

func TestTrackKeepsStateWithinFrame(t *testing.T) {
	cfg := DefaultConfig()
	size := cfg.ScoreSize()
	plane := size * size
	// уверенная точка в углу сетки и огромные рамки
	cls := entity.NewTensor(2, size, size)
	cls.Data[plane] = 10
	reg := entity.NewTensor(4, size, size)
	for i := range reg.Data {
		reg.Data[i] = 5000
	}
	tr := newTestTracker(t, &fakeBackend{cls: cls, reg: reg})
	ctx := context.Background()
	frame := gradientFrame(frameW, frameH)

	require.NoError(t, tr.Init(ctx, frame, entity.Rect{X: 5, Y: 5, Width: 30, Height: 30}))
	for i := 0; i < 5; i++ {
		_, err := tr.Track(ctx, frame)
		require.NoError(t, err)
		st, _ := tr.State()
		require.GreaterOrEqual(t, st.Center.X, 0.0)
		require.LessOrEqual(t, st.Center.X, float64(frameW))
		require.GreaterOrEqual(t, st.Center.Y, 0.0)
		require.LessOrEqual(t, st.Center.Y, float64(frameH))
		require.GreaterOrEqual(t, st.Size.W, cfg.MinSize)
		require.LessOrEqual(t, st.Size.W, float64(frameW))
		require.GreaterOrEqual(t, st.Size.H, cfg.MinSize)
		require.LessOrEqual(t, st.Size.H, float64(frameH))
	}
}

func TestTrackRejectsEmptyFrame(t *testing.T) {
	cfg := DefaultConfig()
	cls, reg, _ := craftedHead(cfg, initBox.Size(), 3)
	tr := newTestTracker(t, &fakeBackend{cls: cls, reg: reg})
	ctx := context.Background()
	require.NoError(t, tr.Init(ctx, gradientFrame(frameW, frameH), initBox))

	_, err := tr.Track(ctx, image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrEmptyFrame)
}
