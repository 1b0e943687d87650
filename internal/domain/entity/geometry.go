package entity

// Point точка на кадре в пикселях
type Point struct {
	X float64
	Y float64
}

// Size размер объекта в пикселях
type Size struct {
	W float64
	H float64
}

// Rect прямоугольник в форме (левый верхний угол, ширина, высота)
type Rect struct {
	X      float64 // координата X левого верхнего угла
	Y      float64 // координата Y левого верхнего угла
	Width  float64 // ширина в пикселях
	Height float64 // высота в пикселях
}

// RectFromCenter строит прямоугольник по центру и размеру
func RectFromCenter(c Point, s Size) Rect {
	return Rect{
		X:      c.X - s.W/2,
		Y:      c.Y - s.H/2,
		Width:  s.W,
		Height: s.H,
	}
}

// Center возвращает геометрический центр прямоугольника
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Size возвращает размер прямоугольника
func (r Rect) Size() Size {
	return Size{W: r.Width, H: r.Height}
}

// Empty сообщает, что у прямоугольника нет площади
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
