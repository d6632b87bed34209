package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 трехмерный вектор мировых координат (метры)
type Vec3 = mgl64.Vec3

// Quat ориентация сущности
type Quat = mgl64.Quat

// Zero нулевой вектор
var Zero = Vec3{0, 0, 0}

// Splat возвращает вектор с одинаковыми компонентами
func Splat(v float64) Vec3 {
	return Vec3{v, v, v}
}

// IdentityRotation единичный кватернион
func IdentityRotation() Quat {
	return mgl64.QuatIdent()
}

// DistanceTo возвращает расстояние между точками
func DistanceTo(a, b Vec3) float64 {
	return a.Sub(b).Len()
}

// Volume произведение компонент (объём параллелепипеда с такими размерами)
func Volume(dims Vec3) float64 {
	return math.Abs(dims.X() * dims.Y() * dims.Z())
}

// MulComponents покомпонентное произведение
func MulComponents(a, b Vec3) Vec3 {
	return Vec3{a.X() * b.X(), a.Y() * b.Y(), a.Z() * b.Z()}
}

// DivComponents покомпонентное деление; деление на ноль даёт 0
func DivComponents(a, b Vec3) Vec3 {
	var out Vec3
	for i := 0; i < 3; i++ {
		if b[i] != 0 {
			out[i] = a[i] / b[i]
		}
	}
	return out
}
