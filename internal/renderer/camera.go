package renderer

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/entity-renderer/internal/vec"
)

// ViewState источник луча пикинга и позиции аватара
type ViewState interface {
	// ComputePickRay луч из камеры через точку окна (пиксели, ось Y вниз)
	ComputePickRay(x, y float64) vec.Ray
	AvatarPosition() vec.Vec3
}

// Camera перспективная камера и позиция аватара. Потокобезопасна:
// позицию меняют обработчики ввода и отладочный API.
type Camera struct {
	mu          sync.RWMutex
	position    vec.Vec3
	orientation vec.Quat
	fovY        float64
	width       float64
	height      float64
	avatar      vec.Vec3
}

// NewCamera камера в начале координат, смотрящая вдоль -Z, вертикальный угол 45°
func NewCamera(width, height int) *Camera {
	return &Camera{
		orientation: mgl64.QuatIdent(),
		fovY:        mgl64.DegToRad(45),
		width:       float64(max(width, 1)),
		height:      float64(max(height, 1)),
	}
}

// SetPose задаёт положение и ориентацию камеры
func (c *Camera) SetPose(position vec.Vec3, orientation vec.Quat) {
	c.mu.Lock()
	c.position = position
	c.orientation = orientation.Normalize()
	c.mu.Unlock()
}

// LookAt направляет камеру из position в target (без учёта крена)
func (c *Camera) LookAt(position, target vec.Vec3) {
	dir := target.Sub(position)
	if dir.Len() == 0 {
		c.SetPose(position, mgl64.QuatIdent())
		return
	}
	c.SetPose(position, mgl64.QuatBetweenVectors(vec.Vec3{0, 0, -1}, dir.Normalize()))
}

func (c *Camera) SetAvatarPosition(p vec.Vec3) {
	c.mu.Lock()
	c.avatar = p
	c.mu.Unlock()
}

func (c *Camera) AvatarPosition() vec.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avatar
}

// Viewport размер окна в пикселях
func (c *Camera) Viewport() (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

func (c *Camera) ComputePickRay(x, y float64) vec.Ray {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ndcX := 2*x/c.width - 1
	ndcY := 1 - 2*y/c.height
	tanHalf := math.Tan(c.fovY / 2)
	aspect := c.width / c.height

	dir := vec.Vec3{ndcX * tanHalf * aspect, ndcY * tanHalf, -1}
	return vec.NewRay(c.position, c.orientation.Rotate(dir))
}
