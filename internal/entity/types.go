package entity

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
)

// ID глобально уникальный идентификатор сущности
type ID = uuid.UUID

// UnknownID пустой идентификатор ("нет сущности")
var UnknownID = uuid.Nil

// NewID генерирует новый идентификатор сущности
func NewID() ID {
	return uuid.New()
}

// Less задаёт детерминированный порядок идентификаторов
func Less(a, b ID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// Type тег варианта сущности
type Type uint8

const (
	TypeUnknown Type = iota
	TypeBox
	TypeSphere
	TypeShape
	TypeModel
	TypeLight
	TypeText
	TypeWeb
	TypeZone
	TypeParticleEffect
	TypeLine
	TypePolyLine
	TypePolyVox
)

var typeNames = map[Type]string{
	TypeUnknown:        "Unknown",
	TypeBox:            "Box",
	TypeSphere:         "Sphere",
	TypeShape:          "Shape",
	TypeModel:          "Model",
	TypeLight:          "Light",
	TypeText:           "Text",
	TypeWeb:            "Web",
	TypeZone:           "Zone",
	TypeParticleEffect: "ParticleEffect",
	TypeLine:           "Line",
	TypePolyLine:       "PolyLine",
	TypePolyVox:        "PolyVox",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// ParseType разбирает имя типа без учёта регистра
func ParseType(s string) Type {
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return t
		}
	}
	return TypeUnknown
}

// MarshalText / UnmarshalText позволяют хранить тип строкой в YAML и JSON
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	*t = ParseType(string(text))
	return nil
}
