package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/entity-renderer/internal/vec"
)

func TestPickRayThroughCenter(t *testing.T) {
	c := NewCamera(800, 600)
	ray := c.ComputePickRay(400, 300)
	assert.InDelta(t, -1.0, ray.Direction.Z(), 1e-9)
	assert.InDelta(t, 0.0, ray.Direction.X(), 1e-9)

	// правый край окна уводит луч вправо, верх окна вверх
	right := c.ComputePickRay(800, 300)
	assert.Greater(t, right.Direction.X(), 0.0)
	top := c.ComputePickRay(400, 0)
	assert.Greater(t, top.Direction.Y(), 0.0)
}

func TestLookAtTarget(t *testing.T) {
	c := NewCamera(100, 100)
	c.LookAt(vec.Vec3{0, 0, 0}, vec.Vec3{5, 0, 0})
	ray := c.ComputePickRay(50, 50)
	assert.InDelta(t, 1.0, ray.Direction.X(), 1e-6)
	assert.Equal(t, vec.Vec3{}, ray.Origin)
}
