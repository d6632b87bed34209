package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/vec"
)

const (
	entityPrefix = "entity:"
	avatarPrefix = "avatar:"
)

// EntityRecord сохранённое состояние одной сущности
type EntityRecord struct {
	ID         entity.ID         `json:"id"`
	Properties entity.Properties `json:"properties"`
	SavedAt    time.Time         `json:"saved_at"`
}

// SnapshotStore снапшот локального дерева сущностей и позиции аватаров в BadgerDB.
// Значения хранятся как JSON, сжатый zstd.
type SnapshotStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ AvatarRepo = (*SnapshotStore)(nil)

// NewSnapshotStore открывает хранилище в каталоге dataPath/snapshot
func NewSnapshotStore(dataPath string) (*SnapshotStore, error) {
	dbPath := filepath.Join(dataPath, "snapshot")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB
	return openSnapshotStore(opts, dbPath)
}

// NewInMemorySnapshotStore хранилище без диска (тесты, -storage.path="")
func NewInMemorySnapshotStore() (*SnapshotStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openSnapshotStore(opts, "")
}

func openSnapshotStore(opts badger.Options, dbPath string) (*SnapshotStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &SnapshotStore{db: db, dbPath: dbPath, isReady: true, enc: enc, dec: dec}, nil
}

// Path каталог базы; пусто для хранилища в памяти
func (s *SnapshotStore) Path() string { return s.dbPath }

// Close закрывает хранилище данных
func (s *SnapshotStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func (s *SnapshotStore) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return s.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (s *SnapshotStore) decode(data []byte, v any) error {
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd: %w", err)
	}
	return json.Unmarshal(raw, v)
}

func entityKey(id entity.ID) []byte { return []byte(entityPrefix + id.String()) }
func avatarKey(id uuid.UUID) []byte { return []byte(avatarPrefix + id.String()) }

// SaveEntity сохраняет или перезаписывает одну сущность
func (s *SnapshotStore) SaveEntity(rec EntityRecord) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}
	if rec.ID == entity.UnknownID {
		return fmt.Errorf("save entity: пустой идентификатор")
	}

	data, err := s.encode(rec)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", rec.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entityKey(rec.ID), data)
	})
}

// ReplaceEntities заменяет весь снапшот сущностей на records
func (s *SnapshotStore) ReplaceEntities(records []EntityRecord) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}

	if err := s.db.DropPrefix([]byte(entityPrefix)); err != nil {
		return fmt.Errorf("drop snapshot: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, rec := range records {
		data, err := s.encode(rec)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", rec.ID, err)
		}
		if err := wb.Set(entityKey(rec.ID), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// LoadEntities все сохранённые сущности, упорядоченные по идентификатору
func (s *SnapshotStore) LoadEntities() ([]EntityRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrNotReady
	}

	var out []EntityRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(entityPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec EntityRecord
			if err := s.decode(data, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// DeleteEntity удаляет сущность из снапшота
func (s *SnapshotStore) DeleteEntity(id entity.ID) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entityKey(id))
	})
}

// Save сохраняет позицию аватара
func (s *SnapshotStore) Save(ctx context.Context, sessionID uuid.UUID, pos vec.Vec3) error {
	return s.BatchSave(ctx, map[uuid.UUID]vec.Vec3{sessionID: pos})
}

// Load позиция аватара сессии
func (s *SnapshotStore) Load(ctx context.Context, sessionID uuid.UUID) (vec.Vec3, bool, error) {
	if err := ctx.Err(); err != nil {
		return vec.Vec3{}, false, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return vec.Vec3{}, false, ErrNotReady
	}

	var pos vec.Vec3
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(avatarKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return s.decode(val, &pos)
		})
	})
	return pos, found, err
}

// Delete удаляет позицию аватара
func (s *SnapshotStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(avatarKey(sessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("позиция для сессии %s не найдена", sessionID)
			}
			return err
		}
		return txn.Delete(avatarKey(sessionID))
	})
}

// BatchSave сохраняет позиции аватаров одной транзакцией
func (s *SnapshotStore) BatchSave(ctx context.Context, positions map[uuid.UUID]vec.Vec3) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, pos := range positions {
		if err := validateAvatar(id, pos); err != nil {
			return err
		}
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for id, pos := range positions {
			data, err := s.encode(pos)
			if err != nil {
				return err
			}
			if err := txn.Set(avatarKey(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}
