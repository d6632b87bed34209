package tree

import (
	"fmt"
	"math"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/vec"
)

// maxCellsPerEntity сущности, покрывающие больше ячеек, хранятся отдельным списком
// (большие зоны не размазываются по тысячам ячеек)
const maxCellsPerEntity = 512

// SpatialIndex 3D сетка для поиска сущностей вблизи точки.
// Не синхронизирован: вызывается под блокировкой дерева.
type SpatialIndex struct {
	cellSize float64
	cells    map[cellKey]*cellData
	entities map[entity.ID]*indexedEntity
	large    map[entity.ID]*indexedEntity
}

// cellKey ключ ячейки сетки
type cellKey struct {
	x, y, z int
}

// cellData сущности ячейки
type cellData struct {
	entities map[entity.ID]*indexedEntity
}

// indexedEntity проиндексированная сущность
type indexedEntity struct {
	item   entity.Item
	cells  []cellKey
	bounds vec.AABox
}

// NewSpatialIndex создаёт новый пространственный индекс
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 16.0
	}

	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]*cellData),
		entities: make(map[entity.ID]*indexedEntity),
		large:    make(map[entity.ID]*indexedEntity),
	}
}

// Insert добавляет сущность в индекс (или переиндексирует существующую)
func (si *SpatialIndex) Insert(item entity.Item) {
	if _, exists := si.entities[item.ID()]; exists {
		si.Remove(item.ID())
	}

	bounds := item.AABox()
	indexed := &indexedEntity{item: item, bounds: bounds}
	si.entities[item.ID()] = indexed

	if si.cellCount(bounds) > maxCellsPerEntity {
		si.large[item.ID()] = indexed
		return
	}

	indexed.cells = si.getCellsForBounds(bounds)
	for _, key := range indexed.cells {
		si.getOrCreateCell(key).entities[item.ID()] = indexed
	}
}

// Update обновляет положение сущности в индексе
func (si *SpatialIndex) Update(item entity.Item) {
	indexed, exists := si.entities[item.ID()]
	if exists && indexed.bounds == item.AABox() {
		return
	}
	si.Insert(item)
}

// Remove удаляет сущность из индекса
func (si *SpatialIndex) Remove(id entity.ID) {
	indexed, exists := si.entities[id]
	if !exists {
		return
	}
	delete(si.entities, id)
	delete(si.large, id)

	for _, key := range indexed.cells {
		if cell, ok := si.cells[key]; ok {
			delete(cell.entities, id)
			if len(cell.entities) == 0 {
				delete(si.cells, key)
			}
		}
	}
}

// QueryRange возвращает сущности, чей ограничивающий бокс касается сферы
func (si *SpatialIndex) QueryRange(center vec.Vec3, radius float64) []entity.Item {
	bounds := vec.BoxFromCenter(center, vec.Splat(2*radius))

	seen := make(map[entity.ID]struct{})
	result := make([]entity.Item, 0)

	add := func(id entity.ID, indexed *indexedEntity) {
		if _, wasSeen := seen[id]; wasSeen {
			return
		}
		seen[id] = struct{}{}
		if indexed.bounds.TouchesSphere(center, radius) {
			result = append(result, indexed.item)
		}
	}

	for _, key := range si.getCellsForBounds(bounds) {
		if cell, exists := si.cells[key]; exists {
			for id, indexed := range cell.entities {
				add(id, indexed)
			}
		}
	}
	for id, indexed := range si.large {
		add(id, indexed)
	}

	return result
}

// Clear удаляет всё
func (si *SpatialIndex) Clear() {
	si.cells = make(map[cellKey]*cellData)
	si.entities = make(map[entity.ID]*indexedEntity)
	si.large = make(map[entity.ID]*indexedEntity)
}

// GetEntityCount возвращает количество индексированных сущностей
func (si *SpatialIndex) GetEntityCount() int {
	return len(si.entities)
}

// GetStats возвращает статистику индекса
func (si *SpatialIndex) GetStats() string {
	maxPerCell := 0
	total := 0
	for _, cell := range si.cells {
		total += len(cell.entities)
		if len(cell.entities) > maxPerCell {
			maxPerCell = len(cell.entities)
		}
	}
	avg := 0.0
	if len(si.cells) > 0 {
		avg = float64(total) / float64(len(si.cells))
	}
	return fmt.Sprintf("SpatialIndex Stats: %d entities (%d large), %d cells, avg %.2f entities/cell, max %d entities/cell",
		len(si.entities), len(si.large), len(si.cells), avg, maxPerCell)
}

func (si *SpatialIndex) cellCoord(v float64) int {
	return int(math.Floor(v / si.cellSize))
}

func (si *SpatialIndex) cellCount(bounds vec.AABox) int {
	n := 1
	for i := 0; i < 3; i++ {
		span := si.cellCoord(bounds.Max[i]) - si.cellCoord(bounds.Min[i]) + 1
		if span > maxCellsPerEntity {
			return maxCellsPerEntity + 1
		}
		n *= span
		if n > maxCellsPerEntity {
			return n
		}
	}
	return n
}

// getCellsForBounds возвращает ключи ячеек, которые пересекаются с границами
func (si *SpatialIndex) getCellsForBounds(bounds vec.AABox) []cellKey {
	minX, maxX := si.cellCoord(bounds.Min.X()), si.cellCoord(bounds.Max.X())
	minY, maxY := si.cellCoord(bounds.Min.Y()), si.cellCoord(bounds.Max.Y())
	minZ, maxZ := si.cellCoord(bounds.Min.Z()), si.cellCoord(bounds.Max.Z())

	cells := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1)*(maxZ-minZ+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				cells = append(cells, cellKey{x: x, y: y, z: z})
			}
		}
	}
	return cells
}

// getOrCreateCell возвращает ячейку или создаёт новую
func (si *SpatialIndex) getOrCreateCell(key cellKey) *cellData {
	if cell, exists := si.cells[key]; exists {
		return cell
	}

	cell := &cellData{entities: make(map[entity.ID]*indexedEntity)}
	si.cells[key] = cell
	return cell
}
