package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/scenegen"
	"github.com/annel0/entity-renderer/internal/storage"
)

func TestGenerateSeedInspect(t *testing.T) {
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "scene.yaml")
	dataPath := filepath.Join(dir, "data")

	opts := scenegen.DefaultOptions(11)
	require.NoError(t, generate(opts, scenePath))
	_, err := os.Stat(scenePath)
	require.NoError(t, err)

	n, err := seedStore(dataPath, scenePath)
	require.NoError(t, err)
	assert.Equal(t, len(scenegen.Generate(opts).Entities), n)

	// повторный seed заменяет, а не дописывает
	n2, err := seedStore(dataPath, scenePath)
	require.NoError(t, err)
	assert.Equal(t, n, n2)

	store, err := storage.NewSnapshotStore(dataPath)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.LoadEntities()
	require.NoError(t, err)
	assert.Len(t, records, n)

	var out bytes.Buffer
	require.NoError(t, inspect(store, &out))
	assert.Contains(t, out.String(), "Zone: 3")
}

func TestSceneRecords(t *testing.T) {
	p := entity.DefaultProperties()
	p.Type = entity.TypeZone
	s := &scenegen.Scene{Name: "t", Entities: []scenegen.Entry{{Properties: p}}}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	records, err := sceneRecords(s, now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.TypeZone, records[0].Properties.Type)
	assert.Equal(t, time.UTC, records[0].SavedAt.Location())

	s.Entities[0].ID = "bad"
	_, err = sceneRecords(s, now)
	assert.Error(t, err)
}
