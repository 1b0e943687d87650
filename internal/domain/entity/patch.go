package entity

import (
	"fmt"
	"image"
	"image/color"
)

// PatchKind различает шаблонный и поисковый кропы
type PatchKind string

const (
	PatchTemplate PatchKind = "template" // кроп EXEMPLAR_SIZE вокруг цели на первом кадре
	PatchSearch   PatchKind = "search"   // кроп INSTANCE_SIZE на текущем кадре
)

// Patch квадратный кроп кадра, который отдаётся эмбеддеру
type Patch struct {
	Kind  PatchKind
	Image *image.RGBA
}

// Size возвращает сторону квадратного кропа
func (p Patch) Size() int {
	if p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dx()
}

// NCHW раскладывает кроп в тензор [1,3,H,W] с каналами в порядке B,G,R.
// Значения пикселей не нормализуются.
func (p Patch) NCHW() Tensor {
	b := p.Image.Bounds()
	h, w := b.Dy(), b.Dx()
	t := NewTensor(1, 3, h, w)
	plane := h * w
	for y := 0; y < h; y++ {
		row := p.Image.Pix[y*p.Image.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			i := y*w + x
			t.Data[i] = float32(px[2])
			t.Data[plane+i] = float32(px[1])
			t.Data[2*plane+i] = float32(px[0])
		}
	}
	return t
}

// PatchFromNCHW восстанавливает кроп из тензора [1,3,H,W] или [3,H,W] (B,G,R)
func PatchFromNCHW(kind PatchKind, t Tensor) (Patch, error) {
	if err := t.Validate(); err != nil {
		return Patch{}, err
	}
	shape := t.Shape
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 || shape[0] != 3 {
		return Patch{}, fmt.Errorf("patch tensor must be [1,3,H,W], got %v", t.Shape)
	}
	h, w := shape[1], shape[2]
	if h > len(t.Data) || w > len(t.Data) {
		return Patch{}, fmt.Errorf("patch tensor %v exceeds its %d values", t.Shape, len(t.Data))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				R: clampByte(t.Data[2*plane+i]),
				G: clampByte(t.Data[plane+i]),
				B: clampByte(t.Data[i]),
				A: 0xff,
			})
		}
	}
	return Patch{Kind: kind, Image: img}, nil
}

func clampByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
