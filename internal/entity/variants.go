package entity

import (
	"strings"

	"github.com/annel0/entity-renderer/internal/vec"
)

// Shape примитив: бокс или сфера (эллипсоид при неравных размерах)
type Shape struct {
	*Base
}

func NewShape(id ID, props Properties) *Shape {
	if props.Shape == "" {
		switch props.Type {
		case TypeSphere:
			props.Shape = ShapeSphere
		default:
			props.Shape = ShapeBox
		}
	}
	return &Shape{Base: NewBase(id, props)}
}

func (s *Shape) isSphere() bool {
	return strings.EqualFold(s.Properties().Shape, ShapeSphere)
}

func (s *Shape) Contains(p vec.Vec3) bool {
	if !s.isSphere() {
		return s.Base.Contains(p)
	}
	return ellipsoidContains(s.toNormalized(p))
}

// FindRayIntersection для сферы в точном режиме пересекает саму сферу,
// в приближённом режиме используется ограничивающий бокс.
func (s *Shape) FindRayIntersection(ray vec.Ray, precision bool) (float64, vec.Face, vec.Vec3, bool) {
	if !precision || !s.isSphere() {
		return s.Base.FindRayIntersection(ray, precision)
	}
	dims := s.Dimensions()
	radius := dims.X() / 2
	center := s.center()
	dist, ok := vec.IntersectSphere(ray, center, radius)
	if !ok {
		return 0, vec.FaceUnknown, vec.Zero, false
	}
	normal := ray.At(dist).Sub(center)
	if normal.Len() > 0 {
		normal = normal.Normalize()
	}
	return dist, vec.FaceUnknown, normal, true
}

// Zone объём, влияющий на окружение, когда аватар внутри
type Zone struct {
	*Base
}

func NewZone(id ID, props Properties) *Zone {
	props.Type = TypeZone
	if props.Shape == "" {
		props.Shape = ShapeBox
	}
	return &Zone{Base: NewBase(id, props)}
}

func (z *Zone) Contains(p vec.Vec3) bool {
	if strings.EqualFold(z.Properties().Shape, ShapeSphere) {
		return ellipsoidContains(z.toNormalized(p))
	}
	return z.Base.Contains(p)
}

// Web сущность с интерактивной веб-поверхностью
type Web struct {
	*Base
}

func NewWeb(id ID, props Properties) *Web {
	props.Type = TypeWeb
	if props.DPI <= 0 {
		props.DPI = DefaultWebDPI
	}
	return &Web{Base: NewBase(id, props)}
}

func (w *Web) SourceURL() string {
	return w.Properties().SourceURL
}

func (w *Web) DPI() float64 {
	dpi := w.Properties().DPI
	if dpi <= 0 {
		return DefaultWebDPI
	}
	return dpi
}

// Model сущность с мешем; сам меш внешний
type Model struct {
	*Base
}

func NewModel(id ID, props Properties) *Model {
	props.Type = TypeModel
	return &Model{Base: NewBase(id, props)}
}

func (m *Model) ModelURL() string {
	return m.Properties().ModelURL
}

// Generic сущность без собственной логики (Light, Text, Line, ParticleEffect ...)
type Generic struct {
	*Base
}

func NewGeneric(id ID, props Properties) *Generic {
	return &Generic{Base: NewBase(id, props)}
}

func ellipsoidContains(n vec.Vec3) bool {
	d := n.Sub(vec.Splat(0.5)).Mul(2)
	return d.Dot(d) <= 1
}
