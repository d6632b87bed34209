package pointer

import (
	"github.com/annel0/entity-renderer/internal/vec"
)

// Plane трансформация сущности, на плоскость XY которой проецируется указатель
type Plane interface {
	Position() vec.Vec3
	Rotation() vec.Quat
	Dimensions() vec.Vec3
	RegistrationPoint() vec.Vec3
}

// ProjectOntoEntityXYPlane переводит точку луча в 2D координаты на локальной
// плоскости XY сущности (метры от левого верхнего угла, ось Y вниз).
// Если луч параллелен плоскости, используется fallback (точка пересечения пикинга).
// Для nil сущности возвращает нулевой вектор.
func ProjectOntoEntityXYPlane(e Plane, ray vec.Ray, fallback vec.Vec3) vec.Vec2 {
	if e == nil {
		return vec.Vec2{}
	}

	position := e.Position()
	rotation := e.Rotation()
	dims := e.Dimensions()
	reg := e.RegistrationPoint()

	normal := rotation.Rotate(vec.Vec3{0, 0, 1})
	p := fallback
	if dist, ok := vec.RayPlaneIntersection(ray, position, normal); ok {
		p = ray.At(dist)
	}

	local := rotation.Inverse().Rotate(p.Sub(position))
	n := vec.DivComponents(local, dims).Add(reg)
	return vec.Vec2{n.X() * dims.X(), (1 - n.Y()) * dims.Y()}
}
