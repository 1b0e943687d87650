package tracker

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"track-bot/internal/domain/entity"
)

// selection выбранный кандидат кадра
type selection struct {
	Index   int
	Box     candidate
	Score   float64 // вероятность объекта без штрафа
	Penalty float64
}

func change(r float64) float64 {
	return math.Max(r, 1/r)
}

// padScale эквивалентный масштаб рамки с контекстом (w+h)/2
func padScale(w, h float64) float64 {
	pad := (w + h) / 2
	return math.Sqrt((w + pad) * (h + pad))
}

// selectBest штрафует кандидатов за смену масштаба и пропорций, подмешивает окно Ханна
// и возвращает кандидата с максимальной итоговой оценкой. При равенстве побеждает меньший индекс.
func selectBest(cfg Config, prev entity.Size, scaleZ float64, scores []float64, boxes []candidate, hann []float64) (selection, bool) {
	n := len(scores)
	if n == 0 || len(boxes) != n || len(hann) != n {
		return selection{}, false
	}

	prior := padScale(prev.W*scaleZ, prev.H*scaleZ)
	prevRatio := prev.W / prev.H

	penalties := make([]float64, n)
	final := make([]float64, n)
	finite := false
	for i, b := range boxes {
		sc := change(padScale(b.W, b.H) / prior)
		rc := change(prevRatio / (b.W / b.H))
		penalties[i] = math.Exp(-(rc*sc - 1) * cfg.PenaltyK)
		pscore := penalties[i] * scores[i]
		v := pscore*(1-cfg.WindowInfluence) + hann[i]*cfg.WindowInfluence
		// вывернутые рамки дают NaN или Inf, такие кандидаты не выигрывают
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = math.Inf(-1)
		} else {
			finite = true
		}
		final[i] = v
	}
	if !finite {
		return selection{}, false
	}

	best := floats.MaxIdx(final)
	return selection{
		Index:   best,
		Box:     boxes[best],
		Score:   scores[best],
		Penalty: penalties[best],
	}, true
}
