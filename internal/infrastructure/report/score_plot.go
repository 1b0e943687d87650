// Package report строит сводку и график уверенности по сессии сопровождения.
package report

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
)

// Summary агрегаты по сессии
type Summary struct {
	Frames    int
	MeanScore float64
	MinScore  float64
	LastBox   entity.Rect
}

// Summarize считает агрегаты; записи ожидаются по возрастанию кадра
func Summarize(records []entity.TrackRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, errors.New("no track records")
	}
	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.Score
	}
	return Summary{
		Frames:    len(records),
		MeanScore: floats.Sum(scores) / float64(len(scores)),
		MinScore:  floats.Min(scores),
		LastBox:   records[len(records)-1].BBox,
	}, nil
}

// String текст сводки для чата
func (s Summary) String() string {
	return fmt.Sprintf("Кадров: %d\nСредняя уверенность: %.2f\nМинимальная уверенность: %.2f\nПоследняя рамка: x=%.0f y=%.0f w=%.0f h=%.0f",
		s.Frames, s.MeanScore, s.MinScore, s.LastBox.X, s.LastBox.Y, s.LastBox.Width, s.LastBox.Height)
}

// ScorePlot рисует PNG-график уверенности по кадрам
func ScorePlot(records []entity.TrackRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("no track records")
	}

	p := plot.New()
	p.Title.Text = "Tracking score"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "score"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(records))
	for _, r := range records {
		pts = append(pts, plotter.XY{X: float64(r.Frame), Y: r.Score})
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, errors.Wrap(err, "score line")
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{B: 200, A: 255}
	points.Color = line.Color
	p.Add(line, points)

	w, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, errors.Wrap(err, "render plot")
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "write png")
	}
	return buf.Bytes(), nil
}

// Renderer реализует port.ReportRenderer
type Renderer struct{}

// Render возвращает текст сводки и график уверенности
func (Renderer) Render(records []entity.TrackRecord) (string, []byte, error) {
	s, err := Summarize(records)
	if err != nil {
		return "", nil, err
	}
	chart, err := ScorePlot(records)
	if err != nil {
		return "", nil, err
	}
	return s.String(), chart, nil
}

var _ port.ReportRenderer = Renderer{}
