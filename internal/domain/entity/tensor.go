package entity

import (
	"fmt"
	"math"
)

// Tensor плотный float32-тензор в порядке row-major.
// Используется и для эмбеддингов, и для выходов головы.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor создаёт тензор заданной формы, заполненный нулями
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n < 0 {
		n = 0
	}
	return Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
	}
}

// Len возвращает число элементов по форме, -1 при переполнении int
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		if d > 0 && n > math.MaxInt/d {
			return -1
		}
		n *= d
	}
	return n
}

// Validate проверяет, что длина данных совпадает с формой
func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor shape %v has non-positive dimension", t.Shape)
		}
	}
	n := t.Len()
	if n < 0 {
		return fmt.Errorf("tensor shape %v is too large", t.Shape)
	}
	if n != len(t.Data) {
		return fmt.Errorf("tensor shape %v wants %d values, got %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// Clone возвращает независимую копию
func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}
