package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/tree"
)

// PersistTree заменяет снапшот текущим содержимым дерева
func PersistTree(s *SnapshotStore, t *tree.Tree, now time.Time) (int, error) {
	items := t.Entities()
	records := make([]EntityRecord, 0, len(items))
	for _, item := range items {
		records = append(records, EntityRecord{ID: item.ID(), Properties: item.Properties(), SavedAt: now.UTC()})
	}
	if err := s.ReplaceEntities(records); err != nil {
		return 0, fmt.Errorf("persist tree: %w", err)
	}
	return len(records), nil
}

// RestoreTree добавляет сущности снапшота в дерево.
// Уже существующие и неизвестные типы пропускаются с предупреждением.
func RestoreTree(s *SnapshotStore, t *tree.Tree, log *logging.Logger) (int, error) {
	records, err := s.LoadEntities()
	if err != nil {
		return 0, fmt.Errorf("restore tree: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, err := t.AddEntity(rec.ID, rec.Properties); err != nil {
			if errors.Is(err, tree.ErrEntityExists) {
				log.Debug("Сущность %s уже в дереве", rec.ID)
			} else {
				log.Warn("⚠️ Сущность %s не восстановлена: %v", rec.ID, err)
			}
			continue
		}
		restored++
	}
	return restored, nil
}
