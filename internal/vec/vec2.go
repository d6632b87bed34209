package vec

import "github.com/go-gl/mathgl/mgl64"

// Vec2 2D координаты на плоскости сущности (пиксели веб-поверхности, pos2D указателя)
type Vec2 = mgl64.Vec2

// Size2 целочисленный размер окна
type Size2 struct {
	W, H int
}

// Empty true если одна из сторон нулевая
func (s Size2) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// ClampMaxSide уменьшает размер с сохранением пропорций так, чтобы
// большая сторона не превышала maxSide.
func (s Size2) ClampMaxSide(maxSide int) Size2 {
	if maxSide <= 0 || (s.W <= maxSide && s.H <= maxSide) {
		return s
	}
	if s.W >= s.H {
		return Size2{W: maxSide, H: max(1, s.H*maxSide/s.W)}
	}
	return Size2{W: max(1, s.W*maxSide/s.H), H: maxSide}
}
