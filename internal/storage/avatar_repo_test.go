package storage

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/vec"
)

// testAvatarRepo общий набор проверок для реализаций AvatarRepo
func testAvatarRepo(t *testing.T, repo AvatarRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		session := uuid.New()
		expectedPos := vec.Vec3{10, 20, -1.5}

		if err := repo.Save(ctx, session, expectedPos); err != nil {
			t.Fatalf("Ошибка сохранения позиции: %v", err)
		}

		actualPos, found, err := repo.Load(ctx, session)
		if err != nil {
			t.Fatalf("Ошибка загрузки позиции: %v", err)
		}
		if !found {
			t.Fatal("Позиция не найдена")
		}
		if actualPos != expectedPos {
			t.Errorf("Неверная позиция: ожидалась %+v, получена %+v", expectedPos, actualPos)
		}
	})

	t.Run("Load Unknown Session", func(t *testing.T) {
		pos, found, err := repo.Load(ctx, uuid.New())
		if err != nil {
			t.Fatalf("Ошибка при загрузке неизвестной сессии: %v", err)
		}
		if found {
			t.Error("Позиция найдена для неизвестной сессии")
		}
		if pos != (vec.Vec3{}) {
			t.Errorf("Ожидалась пустая позиция, получена: %+v", pos)
		}
	})

	t.Run("Update Position", func(t *testing.T) {
		session := uuid.New()
		if err := repo.Save(ctx, session, vec.Vec3{1, 2, 3}); err != nil {
			t.Fatalf("Ошибка сохранения первой позиции: %v", err)
		}
		second := vec.Vec3{3, 4, 5}
		if err := repo.Save(ctx, session, second); err != nil {
			t.Fatalf("Ошибка обновления позиции: %v", err)
		}
		actual, _, err := repo.Load(ctx, session)
		if err != nil {
			t.Fatalf("Ошибка загрузки обновленной позиции: %v", err)
		}
		if actual != second {
			t.Errorf("Неверная обновленная позиция: ожидалась %+v, получена %+v", second, actual)
		}
	})

	t.Run("Delete Position", func(t *testing.T) {
		session := uuid.New()
		if err := repo.Save(ctx, session, vec.Vec3{5, 6, 1}); err != nil {
			t.Fatalf("Ошибка сохранения позиции: %v", err)
		}
		if err := repo.Delete(ctx, session); err != nil {
			t.Fatalf("Ошибка удаления позиции: %v", err)
		}
		if _, found, _ := repo.Load(ctx, session); found {
			t.Error("Позиция найдена после удаления")
		}
		if err := repo.Delete(ctx, session); err == nil {
			t.Error("Ожидалась ошибка при повторном удалении")
		}
	})

	t.Run("BatchSave", func(t *testing.T) {
		positions := map[uuid.UUID]vec.Vec3{
			uuid.New(): {10, 11, 1},
			uuid.New(): {20, 21, 2},
			uuid.New(): {30, 31, 1},
		}
		if err := repo.BatchSave(ctx, positions); err != nil {
			t.Fatalf("Ошибка пакетного сохранения: %v", err)
		}
		for id, expected := range positions {
			actual, found, err := repo.Load(ctx, id)
			if err != nil || !found {
				t.Fatalf("Позиция сессии %s не загружена: found=%v err=%v", id, found, err)
			}
			if actual != expected {
				t.Errorf("Неверная позиция сессии %s: ожидалась %+v, получена %+v", id, expected, actual)
			}
		}
	})

	t.Run("Validation", func(t *testing.T) {
		if err := repo.Save(ctx, uuid.Nil, vec.Vec3{1, 1, 1}); err == nil {
			t.Error("Ожидалась ошибка для пустого sessionID")
		}
		if err := repo.Save(ctx, uuid.New(), vec.Vec3{math.NaN(), 0, 0}); err == nil {
			t.Error("Ожидалась ошибка для NaN")
		}
		if err := repo.BatchSave(ctx, map[uuid.UUID]vec.Vec3{uuid.New(): {math.Inf(1), 0, 0}}); err == nil {
			t.Error("Ожидалась ошибка для бесконечной координаты")
		}
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		canceledCtx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := repo.Save(canceledCtx, uuid.New(), vec.Vec3{1, 1, 1}); err != context.Canceled {
			t.Errorf("Ожидалась ошибка отмены контекста, получена: %v", err)
		}
	})
}

func TestMemoryAvatarRepo(t *testing.T) {
	repo := NewMemoryAvatarRepo()
	testAvatarRepo(t, repo)
	if repo.Count() == 0 {
		t.Error("Ожидались сохранённые позиции")
	}
}

func TestSnapshotStoreAsAvatarRepo(t *testing.T) {
	store, err := NewInMemorySnapshotStore()
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	defer store.Close()
	testAvatarRepo(t, store)
}
