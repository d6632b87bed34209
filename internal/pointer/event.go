package pointer

import (
	"github.com/annel0/entity-renderer/internal/vec"
)

// EventType тип события указателя
type EventType int

const (
	Press EventType = iota
	DoublePress
	Move
	Release
)

func (t EventType) String() string {
	switch t {
	case Press:
		return "Press"
	case DoublePress:
		return "DoublePress"
	case Move:
		return "Move"
	case Release:
		return "Release"
	}
	return "Unknown"
}

// Button кнопка указателя
type Button uint32

const (
	NoButtons       Button = 0
	PrimaryButton   Button = 1
	SecondaryButton Button = 2
	TertiaryButton  Button = 4
)

// MousePointerID идентификатор указателя мыши
const MousePointerID uint32 = 0

// Event унифицированное событие указателя, не зависящее от устройства
type Event struct {
	Type          EventType `json:"type"`
	ID            uint32    `json:"id"`
	Pos2D         vec.Vec2  `json:"pos_2d"`
	Intersection  vec.Vec3  `json:"intersection"`
	SurfaceNormal vec.Vec3  `json:"surface_normal"`
	Direction     vec.Vec3  `json:"direction"`
	Button        Button    `json:"button"`
	Buttons       Button    `json:"buttons"`
}

// IsPressed проверяет, зажата ли кнопка в маске Buttons
func (e Event) IsPressed(b Button) bool {
	return e.Buttons&b != 0
}
