package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/vec"
)

// MemoryAvatarRepo реализует AvatarRepo в памяти.
// Используется, когда путь к хранилищу не задан, и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryAvatarRepo struct {
	mu   sync.RWMutex
	data map[uuid.UUID]vec.Vec3 // sessionID -> позиция
}

// NewMemoryAvatarRepo создает новый репозиторий позиций в памяти.
func NewMemoryAvatarRepo() *MemoryAvatarRepo {
	return &MemoryAvatarRepo{
		data: make(map[uuid.UUID]vec.Vec3),
	}
}

// Save сохраняет позицию аватара в памяти.
func (r *MemoryAvatarRepo) Save(ctx context.Context, sessionID uuid.UUID, pos vec.Vec3) error {
	if err := validateAvatar(sessionID, pos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[sessionID] = pos
	return nil
}

// Load загружает позицию аватара из памяти.
func (r *MemoryAvatarRepo) Load(ctx context.Context, sessionID uuid.UUID) (vec.Vec3, bool, error) {
	if sessionID == uuid.Nil {
		return vec.Vec3{}, false, fmt.Errorf("недействительный sessionID: %s", sessionID)
	}
	if err := ctx.Err(); err != nil {
		return vec.Vec3{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, exists := r.data[sessionID]
	return pos, exists, nil
}

// Delete удаляет сохраненную позицию из памяти.
func (r *MemoryAvatarRepo) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[sessionID]; !exists {
		return fmt.Errorf("позиция для сессии %s не найдена", sessionID)
	}
	delete(r.data, sessionID)
	return nil
}

// BatchSave сохраняет позиции нескольких сессий в памяти.
func (r *MemoryAvatarRepo) BatchSave(ctx context.Context, positions map[uuid.UUID]vec.Vec3) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Валидация всех записей перед сохранением
	for id, pos := range positions {
		if err := validateAvatar(id, pos); err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pos := range positions {
		r.data[id] = pos
	}
	return nil
}

// Count возвращает количество сохраненных позиций (для отладки).
func (r *MemoryAvatarRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
