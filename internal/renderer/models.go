package renderer

import (
	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/entity"
)

// Model дескриптор модели сущности. Сами меши загружает внешний коллаборатор.
type Model struct {
	ID       uuid.UUID
	EntityID entity.ID
	URL      string
	released bool
}

// AllocateModel создаёт модель в горутине-владельце; вызывающий ждёт результат
func (r *Renderer) AllocateModel(owner entity.ID, modelURL string) (*Model, error) {
	var (
		m   *Model
		err error
	)
	r.Invoke(func() {
		if r.shuttingDown {
			err = ErrShuttingDown
			return
		}
		m = &Model{ID: uuid.New(), EntityID: owner, URL: modelURL}
		r.liveModels++
		r.logger.Trace("🧱 Модель %s для %s: %s", m.ID, owner, modelURL)
	})
	return m, err
}

// UpdateModel меняет URL модели; false если модель уже освобождена или URL тот же
func (r *Renderer) UpdateModel(m *Model, modelURL string) bool {
	if m == nil {
		return false
	}
	var updated bool
	r.Invoke(func() {
		if m.released || m.URL == modelURL {
			return
		}
		m.URL = modelURL
		updated = true
	})
	return updated
}

// ReleaseModel ставит модель в очередь на освобождение на следующем тике.
// Безопасен для вызова из любой горутины и не ждёт владельца.
func (r *Renderer) ReleaseModel(m *Model) {
	if m == nil {
		return
	}
	r.releasedMu.Lock()
	r.releasedModels = append(r.releasedModels, m)
	r.releasedMu.Unlock()
}

func (r *Renderer) deleteReleasedModels() {
	r.releasedMu.Lock()
	released := r.releasedModels
	r.releasedModels = nil
	r.releasedMu.Unlock()

	for _, m := range released {
		if m.released {
			continue
		}
		m.released = true
		r.liveModels--
	}
}

// LiveModels количество неосвобождённых моделей
func (r *Renderer) LiveModels() int {
	var n int
	r.Invoke(func() { n = r.liveModels })
	return n
}
