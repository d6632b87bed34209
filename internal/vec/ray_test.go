package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAABoxIntersectRay(t *testing.T) {
	box := AABox{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}

	dist, face, ok := box.IntersectRay(NewRay(Vec3{0, 0, 5}, Vec3{0, 0, -1}))
	assert.True(t, ok)
	assert.InDelta(t, 4.0, dist, 1e-9)
	assert.Equal(t, MaxZFace, face)
	assert.Equal(t, Vec3{0, 0, 1}, face.Normal())

	_, _, ok = box.IntersectRay(NewRay(Vec3{3, 0, 5}, Vec3{0, 0, -1}))
	assert.False(t, ok, "луч проходит мимо")

	_, _, ok = box.IntersectRay(NewRay(Vec3{0, 0, 5}, Vec3{0, 0, 1}))
	assert.False(t, ok, "бокс позади луча")

	dist, _, ok = box.IntersectRay(NewRay(Vec3{0, 0, 0}, Vec3{1, 0, 0}))
	assert.True(t, ok, "начало внутри бокса")
	assert.Equal(t, 0.0, dist)
}

func TestAABoxContainsAndVolume(t *testing.T) {
	box := BoxFromCenter(Vec3{1, 1, 1}, Vec3{2, 4, 1})
	assert.InDelta(t, 8.0, box.Volume(), 1e-9)
	assert.True(t, box.Contains(Vec3{1, 1, 1}))
	assert.True(t, box.Contains(Vec3{2, 3, 1.5}), "граница включительно")
	assert.False(t, box.Contains(Vec3{2.1, 1, 1}))
	assert.True(t, box.TouchesSphere(Vec3{2.05, 1, 1}, 0.1))
	assert.False(t, box.TouchesSphere(Vec3{3, 1, 1}, 0.1))
}

func TestRayPlaneIntersection(t *testing.T) {
	r := NewRay(Vec3{0, 0, 10}, Vec3{0, 0, -2})
	dist, ok := RayPlaneIntersection(r, Vec3{0, 0, 0}, Vec3{0, 0, 1})
	assert.True(t, ok)
	assert.InDelta(t, 10.0, dist, 1e-9)

	_, ok = RayPlaneIntersection(NewRay(Vec3{0, 0, 10}, Vec3{1, 0, 0}), Vec3{0, 0, 0}, Vec3{0, 0, 1})
	assert.False(t, ok, "луч параллелен плоскости")
}

func TestIntersectSphere(t *testing.T) {
	dist, ok := IntersectSphere(NewRay(Vec3{0, 0, 5}, Vec3{0, 0, -1}), Zero, 1)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, dist, 1e-9)

	_, ok = IntersectSphere(NewRay(Vec3{2, 0, 5}, Vec3{0, 0, -1}), Zero, 1)
	assert.False(t, ok)
}

func TestSizeClampMaxSide(t *testing.T) {
	assert.Equal(t, Size2{W: 100, H: 50}, Size2{W: 100, H: 50}.ClampMaxSide(4096))
	assert.Equal(t, Size2{W: 4096, H: 2048}, Size2{W: 8192, H: 4096}.ClampMaxSide(4096))
	assert.Equal(t, Size2{W: 1024, H: 4096}, Size2{W: 2048, H: 8192}.ClampMaxSide(4096))
	assert.True(t, Size2{W: 0, H: 10}.Empty())
}
