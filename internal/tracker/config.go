package tracker

// Config неизменяемые константы алгоритма. Передаётся в New и больше не меняется.
type Config struct {
	ExemplarSize    int     // сторона шаблонного кропа, px
	InstanceSize    int     // сторона поискового кропа, px
	Stride          int     // шаг сетки точек, px
	BaseSize        int     // добавка к размеру карты откликов
	ContextAmount   float64 // доля размера объекта, добавляемая как контекст
	PenaltyK        float64 // сила штрафа за изменение масштаба и пропорций
	WindowInfluence float64 // вес окна Ханна в итоговой оценке
	LR              float64 // базовая скорость EMA-обновления размера
	MinSize         float64 // минимальная ширина и высота рамки, px
}

// DefaultConfig возвращает константы NanoTrack
func DefaultConfig() Config {
	return Config{
		ExemplarSize:    127,
		InstanceSize:    255,
		Stride:          16,
		BaseSize:        7,
		ContextAmount:   0.5,
		PenaltyK:        0.15,
		WindowInfluence: 0.455,
		LR:              0.37,
		MinSize:         10,
	}
}

// ScoreSize возвращает сторону карты откликов головы
func (c Config) ScoreSize() int {
	if c.Stride <= 0 {
		return 0
	}
	return (c.InstanceSize-c.ExemplarSize)/c.Stride + 1 + c.BaseSize
}

// Validate проверяет константы на согласованность
func (c Config) Validate() error {
	switch {
	case c.ExemplarSize <= 0:
		return &ConfigError{Field: "ExemplarSize", Reason: "must be positive"}
	case c.InstanceSize < c.ExemplarSize:
		return &ConfigError{Field: "InstanceSize", Reason: "must not be smaller than ExemplarSize"}
	case c.Stride <= 0:
		return &ConfigError{Field: "Stride", Reason: "must be positive"}
	case c.ScoreSize() <= 0:
		return &ConfigError{Field: "BaseSize", Reason: "score size must be positive"}
	case c.ContextAmount < 0:
		return &ConfigError{Field: "ContextAmount", Reason: "must not be negative"}
	case c.PenaltyK < 0:
		return &ConfigError{Field: "PenaltyK", Reason: "must not be negative"}
	case c.WindowInfluence < 0 || c.WindowInfluence > 1:
		return &ConfigError{Field: "WindowInfluence", Reason: "must be within [0,1]"}
	case c.LR < 0 || c.LR > 1:
		return &ConfigError{Field: "LR", Reason: "must be within [0,1]"}
	case c.MinSize <= 0:
		return &ConfigError{Field: "MinSize", Reason: "must be positive"}
	}
	return nil
}
