package vec

import "math"

// Ray луч пикинга: начало и нормализованное направление
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// NewRay создаёт луч, нормализуя направление
func NewRay(origin, direction Vec3) Ray {
	if direction.Len() > 0 {
		direction = direction.Normalize()
	}
	return Ray{Origin: origin, Direction: direction}
}

// At точка на луче на расстоянии t
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Face грань ограничивающего бокса, в которую попал луч
type Face int

const (
	FaceUnknown Face = iota
	MinXFace
	MaxXFace
	MinYFace
	MaxYFace
	MinZFace
	MaxZFace
)

var faceNames = [...]string{"unknown", "min_x", "max_x", "min_y", "max_y", "min_z", "max_z"}

func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return "unknown"
}

// Normal внешняя нормаль грани
func (f Face) Normal() Vec3 {
	switch f {
	case MinXFace:
		return Vec3{-1, 0, 0}
	case MaxXFace:
		return Vec3{1, 0, 0}
	case MinYFace:
		return Vec3{0, -1, 0}
	case MaxYFace:
		return Vec3{0, 1, 0}
	case MinZFace:
		return Vec3{0, 0, -1}
	case MaxZFace:
		return Vec3{0, 0, 1}
	}
	return Zero
}

// AABox осевой ограничивающий параллелепипед
type AABox struct {
	Min Vec3
	Max Vec3
}

// BoxFromCenter строит бокс по центру и размерам
func BoxFromCenter(center, dims Vec3) AABox {
	half := dims.Mul(0.5)
	return AABox{Min: center.Sub(half), Max: center.Add(half)}
}

// Dimensions размеры бокса
func (b AABox) Dimensions() Vec3 {
	return b.Max.Sub(b.Min)
}

// Volume объём бокса
func (b AABox) Volume() float64 {
	return Volume(b.Dimensions())
}

// Center центр бокса
func (b AABox) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains проверяет попадание точки (границы включительно)
func (b AABox) Contains(p Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

// TouchesSphere проверяет пересечение бокса со сферой
func (b AABox) TouchesSphere(center Vec3, radius float64) bool {
	var d2 float64
	for i := 0; i < 3; i++ {
		if center[i] < b.Min[i] {
			d := b.Min[i] - center[i]
			d2 += d * d
		} else if center[i] > b.Max[i] {
			d := center[i] - b.Max[i]
			d2 += d * d
		}
	}
	return d2 <= radius*radius
}

// IntersectRay пересечение луча с боксом методом slab.
// Возвращает расстояние до входа, грань и true при попадании.
// Если начало луча внутри бокса, расстояние равно 0 и грань та, через которую луч выходит.
func (b AABox) IntersectRay(r Ray) (float64, Face, bool) {
	tMin, tMax := math.Inf(-1), math.Inf(1)
	enterFace, exitFace := FaceUnknown, FaceUnknown

	for i := 0; i < 3; i++ {
		o, d := r.Origin[i], r.Direction[i]
		if math.Abs(d) < 1e-12 {
			if o < b.Min[i] || o > b.Max[i] {
				return 0, FaceUnknown, false
			}
			continue
		}
		t1 := (b.Min[i] - o) / d
		t2 := (b.Max[i] - o) / d
		nearFace, farFace := Face(1+2*i), Face(2+2*i)
		if t1 > t2 {
			t1, t2 = t2, t1
			nearFace, farFace = farFace, nearFace
		}
		if t1 > tMin {
			tMin = t1
			enterFace = nearFace
		}
		if t2 < tMax {
			tMax = t2
			exitFace = farFace
		}
		if tMin > tMax {
			return 0, FaceUnknown, false
		}
	}

	if tMax < 0 {
		return 0, FaceUnknown, false
	}
	if tMin < 0 {
		return 0, exitFace, true
	}
	return tMin, enterFace, true
}

// IntersectSphere пересечение луча со сферой, возвращает ближайшее неотрицательное расстояние
func IntersectSphere(r Ray, center Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// RayPlaneIntersection пересечение луча с плоскостью, заданной точкой и нормалью
func RayPlaneIntersection(r Ray, planePoint, planeNormal Vec3) (float64, bool) {
	denom := planeNormal.Dot(r.Direction)
	if math.Abs(denom) < 1e-9 {
		return 0, false
	}
	t := planePoint.Sub(r.Origin).Dot(planeNormal) / denom
	if t < 0 {
		return 0, false
	}
	return t, true
}
