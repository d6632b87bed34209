// Package zones упорядочивает зоны, содержащие аватар, по объёму.
// Самая маленькая зона доминирует и применяется последней.
package zones

import (
	"sort"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/vec"
)

// Zone то, что нужно от сущности-зоны для ранжирования
type Zone interface {
	ID() entity.ID
	Visible() bool
	AABox() vec.AABox
	RenderItemID() scene.ItemID
}

// LayeredZone слой: зона, её идентификатор и объём охватывающего бокса
type LayeredZone struct {
	Zone   Zone
	ID     entity.ID
	Volume float64
}

// NewLayeredZone снимает объём зоны на момент вызова
func NewLayeredZone(z Zone) LayeredZone {
	return LayeredZone{Zone: z, ID: z.ID(), Volume: z.AABox().Volume()}
}

// Less объём по возрастанию, при равенстве по идентификатору
func (l LayeredZone) Less(other LayeredZone) bool {
	if l.Volume != other.Volume {
		return l.Volume < other.Volume
	}
	return entity.Less(l.ID, other.ID)
}

// Equal совпадение по значению
func (l LayeredZone) Equal(other LayeredZone) bool {
	return l.ID == other.ID && l.Volume == other.Volume
}

// endMarker маркер слоя скайбокса за концом последовательности
const endMarker = -1

// LayeredZones упорядоченное множество слоёв плюс индекс по идентификатору.
// Маркер слоя скайбокса делит последовательность на передний план (префикс)
// и фон (суффикс). Не потокобезопасен: живёт в горутине-владельце рендерера.
type LayeredZones struct {
	apply  func(*LayeredZones)
	layers []LayeredZone
	byID   map[entity.ID]LayeredZone
	skybox int
}

// New создаёт пустую коллекцию; apply вызывается из Apply
func New(apply func(*LayeredZones)) *LayeredZones {
	return &LayeredZones{
		apply:  apply,
		byID:   make(map[entity.ID]LayeredZone),
		skybox: endMarker,
	}
}

// Len количество слоёв
func (l *LayeredZones) Len() int { return len(l.layers) }

// Empty true если слоёв нет
func (l *LayeredZones) Empty() bool { return len(l.layers) == 0 }

// Layers копия слоёв по возрастанию объёма
func (l *LayeredZones) Layers() []LayeredZone {
	out := make([]LayeredZone, len(l.layers))
	copy(out, l.layers)
	return out
}

// Lookup слой по идентификатору зоны
func (l *LayeredZones) Lookup(id entity.ID) (LayeredZone, bool) {
	layer, ok := l.byID[id]
	return layer, ok
}

// SkyboxIndex позиция маркера скайбокса; Len() если маркер за концом
func (l *LayeredZones) SkyboxIndex() int {
	if l.skybox == endMarker {
		return len(l.layers)
	}
	return l.skybox
}

// SkyboxValid true если маркер указывает на реальный слой
func (l *LayeredZones) SkyboxValid() bool {
	return l.skybox != endMarker
}

// Foreground слои до маркера скайбокса
func (l *LayeredZones) Foreground() []LayeredZone {
	return append([]LayeredZone(nil), l.layers[:l.SkyboxIndex()]...)
}

// Background слои начиная с маркера скайбокса
func (l *LayeredZones) Background() []LayeredZone {
	return append([]LayeredZone(nil), l.layers[l.SkyboxIndex():]...)
}

// ApplyOrder порядок применения: от самой большой зоны к самой маленькой,
// доминирующая зона последней
func (l *LayeredZones) ApplyOrder() []LayeredZone {
	out := make([]LayeredZone, len(l.layers))
	for i, layer := range l.layers {
		out[len(l.layers)-1-i] = layer
	}
	return out
}

// RenderItemIDs идентификаторы элементов сцены в ранжированном порядке
func (l *LayeredZones) RenderItemIDs() []scene.ItemID {
	out := make([]scene.ItemID, 0, len(l.layers))
	for _, layer := range l.layers {
		out = append(out, layer.Zone.RenderItemID())
	}
	return out
}

// position бинарный поиск места слоя в упорядоченной последовательности
func (l *LayeredZones) position(layer LayeredZone) int {
	return sort.Search(len(l.layers), func(i int) bool {
		return !l.layers[i].Less(layer)
	})
}

// Insert добавляет слой зоны; false если слой с таким идентификатором уже есть
func (l *LayeredZones) Insert(z Zone) bool {
	return l.InsertLayer(NewLayeredZone(z))
}

// InsertLayer добавляет готовый слой; false если ключ уже занят
func (l *LayeredZones) InsertLayer(layer LayeredZone) bool {
	if _, exists := l.byID[layer.ID]; exists {
		return false
	}
	pos := l.position(layer)
	l.layers = append(l.layers, LayeredZone{})
	copy(l.layers[pos+1:], l.layers[pos:])
	l.layers[pos] = layer
	l.byID[layer.ID] = layer

	// маркер продолжает указывать на тот же слой
	if l.skybox != endMarker && pos <= l.skybox {
		l.skybox++
	}
	return true
}

func (l *LayeredZones) erase(layer LayeredZone) {
	pos := l.position(layer)
	if pos >= len(l.layers) || !l.layers[pos].Equal(layer) {
		return
	}
	l.layers = append(l.layers[:pos], l.layers[pos+1:]...)
	delete(l.byID, layer.ID)

	switch {
	case l.skybox == endMarker:
	case pos < l.skybox:
		l.skybox--
	case pos == l.skybox:
		l.skybox = endMarker
	}
}

// Update переоценивает одну зону без полной пересборки: слой удаляется, если
// объём изменился или зона стала невидимой, и вставляется заново, если зона видима.
// Apply вызывается, если порядок изменился. Возвращает факт изменения.
func (l *LayeredZones) Update(z Zone) bool {
	visible := z.Visible()

	if l.Empty() && visible {
		l.Insert(z)
		l.Apply()
		return true
	}

	layer := NewLayeredZone(z)
	existing, found := l.byID[layer.ID]
	changed := false
	if found && (existing.Volume != layer.Volume || !visible) {
		l.erase(existing)
		found = false
		changed = true
	}
	if !found && visible {
		l.InsertLayer(layer)
		changed = true
	}
	if changed {
		l.Apply()
	}
	return changed
}

// Contains сравнивает префикс этой коллекции с последовательностью other до её
// маркера скайбокса. При совпадении переносит маркер на ту же позицию.
func (l *LayeredZones) Contains(other *LayeredZones) bool {
	n := other.SkyboxIndex()
	if n > len(l.layers) {
		return false
	}
	for i := 0; i < n; i++ {
		if !l.layers[i].Equal(other.layers[i]) {
			return false
		}
	}
	if n < len(l.layers) {
		l.skybox = n
	} else {
		l.skybox = endMarker
	}
	return true
}

// Apply сообщает владельцу, что ранжирование на этот тик окончательное
func (l *LayeredZones) Apply() {
	if l.apply != nil {
		l.apply(l)
	}
}

// Clear очищает слои, индекс и сбрасывает маркер за конец
func (l *LayeredZones) Clear() {
	l.layers = nil
	l.byID = make(map[entity.ID]LayeredZone)
	l.skybox = endMarker
}

// Move переносит содержимое в новую коллекцию, оставляя эту пустой.
// Маркер за концом остаётся за концом в новой коллекции.
func (l *LayeredZones) Move() *LayeredZones {
	moved := &LayeredZones{
		apply:  l.apply,
		layers: l.layers,
		byID:   l.byID,
		skybox: l.skybox,
	}
	if l.skybox == endMarker || l.skybox >= len(l.layers) {
		moved.skybox = endMarker
	}
	l.layers = nil
	l.byID = make(map[entity.ID]LayeredZone)
	l.skybox = endMarker
	return moved
}
