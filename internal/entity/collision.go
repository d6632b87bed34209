package entity

import "github.com/annel0/entity-renderer/internal/vec"

// ContactEventType фаза контакта
type ContactEventType int

const (
	ContactStart ContactEventType = iota
	ContactContinue
	ContactEnd
)

// Collision данные о столкновении двух сущностей от физики
type Collision struct {
	Type           ContactEventType `json:"type"`
	IDA            ID               `json:"id_a"`
	IDB            ID               `json:"id_b"`
	ContactPoint   vec.Vec3         `json:"contact_point"`
	Penetration    vec.Vec3         `json:"penetration"`
	VelocityChange vec.Vec3         `json:"velocity_change"`
}

// Invert меняет стороны столкновения местами
func (c Collision) Invert() Collision {
	c.IDA, c.IDB = c.IDB, c.IDA
	c.Penetration = c.Penetration.Mul(-1)
	c.VelocityChange = c.VelocityChange.Mul(-1)
	return c
}
