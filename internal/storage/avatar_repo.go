package storage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/vec"
)

// ErrNotReady хранилище закрыто или ещё не открыто
var ErrNotReady = errors.New("storage not ready")

// AvatarRepo определяет интерфейс для сохранения и загрузки позиций аватара.
// Позиции привязаны к идентификатору сессии зрителя, что позволяет
// вернуть аватар на место после перезапуска.
type AvatarRepo interface {
	// Save сохраняет позицию аватара сессии.
	Save(ctx context.Context, sessionID uuid.UUID, pos vec.Vec3) error

	// Load загружает позицию аватара.
	// Возвращает:
	//   vec.Vec3 - позиция
	//   bool - true если позиция найдена, false при первом запуске
	//   error - ошибка при загрузке
	Load(ctx context.Context, sessionID uuid.UUID) (vec.Vec3, bool, error)

	// Delete удаляет сохранённую позицию.
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// BatchSave сохраняет позиции нескольких сессий одновременно.
	BatchSave(ctx context.Context, positions map[uuid.UUID]vec.Vec3) error
}

// validateAvatar общая проверка входных данных репозиториев
func validateAvatar(sessionID uuid.UUID, pos vec.Vec3) error {
	if sessionID == uuid.Nil {
		return fmt.Errorf("недействительный sessionID: %s", sessionID)
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(pos[i]) || math.IsInf(pos[i], 0) {
			return fmt.Errorf("недействительная позиция аватара: %v", pos)
		}
	}
	return nil
}
