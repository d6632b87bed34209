package entity

import (
	"encoding/json"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/annel0/entity-renderer/internal/vec"
)

// Properties набор свойств сущности, приходящий из дерева (сеть, снапшот, YAML-сцена)
type Properties struct {
	Type              Type      `json:"type" yaml:"type"`
	Name              string    `json:"name,omitempty" yaml:"name,omitempty"`
	Position          vec.Vec3  `json:"position" yaml:"position"`
	Rotation          vec.Quat  `json:"rotation" yaml:"rotation"`
	Dimensions        vec.Vec3  `json:"dimensions" yaml:"dimensions"`
	RegistrationPoint vec.Vec3  `json:"registration_point" yaml:"registration_point"`
	Visible           bool      `json:"visible" yaml:"visible"`
	Locked            bool      `json:"locked,omitempty" yaml:"locked,omitempty"`
	Collisionless     bool      `json:"collisionless,omitempty" yaml:"collisionless,omitempty"`
	Dynamic           bool      `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	SimulatorID       uuid.UUID `json:"simulator_id,omitempty" yaml:"simulator_id,omitempty"`
	Mass              float64   `json:"mass,omitempty" yaml:"mass,omitempty"`

	Script          string `json:"script,omitempty" yaml:"script,omitempty"`
	ScriptTimestamp int64  `json:"script_timestamp,omitempty" yaml:"script_timestamp,omitempty"`
	Href            string `json:"href,omitempty" yaml:"href,omitempty"`

	// Shape "box" или "sphere" для Shape и Zone
	Shape string `json:"shape,omitempty" yaml:"shape,omitempty"`

	// Web
	SourceURL string  `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	DPI       float64 `json:"dpi,omitempty" yaml:"dpi,omitempty"`

	// Model
	ModelURL       string `json:"model_url,omitempty" yaml:"model_url,omitempty"`
	CollisionSound string `json:"collision_sound,omitempty" yaml:"collision_sound,omitempty"`

	// Text
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Light
	Intensity float64 `json:"intensity,omitempty" yaml:"intensity,omitempty"`
}

const (
	ShapeBox    = "box"
	ShapeSphere = "sphere"

	DefaultDimension = 0.1
	DefaultWebDPI    = 30.0
)

// DefaultProperties свойства по умолчанию: видимая, центрированная, 10 см
func DefaultProperties() Properties {
	return Properties{
		Rotation:          vec.IdentityRotation(),
		Dimensions:        vec.Splat(DefaultDimension),
		RegistrationPoint: vec.Splat(0.5),
		Visible:           true,
	}
}

// UnmarshalYAML заполняет отсутствующие поля значениями по умолчанию
func (p *Properties) UnmarshalYAML(value *yaml.Node) error {
	type raw Properties
	r := raw(DefaultProperties())
	if err := value.Decode(&r); err != nil {
		return err
	}
	*p = Properties(r)
	return nil
}

// UnmarshalJSON заполняет отсутствующие поля значениями по умолчанию
func (p *Properties) UnmarshalJSON(data []byte) error {
	type raw Properties
	r := raw(DefaultProperties())
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = Properties(r)
	return nil
}
