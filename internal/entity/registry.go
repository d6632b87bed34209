package entity

import (
	"fmt"
	"sync"
)

// Factory создаёт сущность варианта по свойствам
type Factory func(id ID, props Properties) Item

// Registry реестр фабрик по тегу типа
type Registry struct {
	mu        sync.RWMutex
	factories map[Type]Factory
}

// NewRegistry создаёт реестр с фабриками базовых (нерендеримых) вариантов
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Type]Factory)}
	r.RegisterDefaults()
	return r
}

// Register регистрирует (или заменяет) фабрику для типа
func (r *Registry) Register(t Type, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// RegisterDefaults регистрирует фабрики по умолчанию
func (r *Registry) RegisterDefaults() {
	shape := func(id ID, p Properties) Item { return NewShape(id, p) }
	generic := func(id ID, p Properties) Item { return NewGeneric(id, p) }

	r.Register(TypeBox, shape)
	r.Register(TypeSphere, shape)
	r.Register(TypeShape, shape)
	r.Register(TypeZone, func(id ID, p Properties) Item { return NewZone(id, p) })
	r.Register(TypeWeb, func(id ID, p Properties) Item { return NewWeb(id, p) })
	r.Register(TypeModel, func(id ID, p Properties) Item { return NewModel(id, p) })
	for _, t := range []Type{TypeLight, TypeText, TypeParticleEffect, TypeLine, TypePolyLine, TypePolyVox} {
		r.Register(t, generic)
	}
}

// Create строит сущность по тегу типа
func (r *Registry) Create(id ID, props Properties) (Item, error) {
	r.mu.RLock()
	f, ok := r.factories[props.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown entity type %s", props.Type)
	}
	return f(id, props), nil
}
