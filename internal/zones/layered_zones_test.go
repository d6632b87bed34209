package zones

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/vec"
)

type fakeZone struct {
	id      entity.ID
	volume  float64
	visible bool
	item    scene.ItemID
}

func newFakeZone(volume float64, item scene.ItemID) *fakeZone {
	return &fakeZone{id: entity.NewID(), volume: volume, visible: true, item: item}
}

func (z *fakeZone) ID() entity.ID             { return z.id }
func (z *fakeZone) Visible() bool             { return z.visible }
func (z *fakeZone) RenderItemID() scene.ItemID { return z.item }

// AABox куб с заданным объёмом
func (z *fakeZone) AABox() vec.AABox {
	side := math.Cbrt(z.volume)
	return vec.BoxFromCenter(vec.Zero, vec.Splat(side))
}

func volumes(l *LayeredZones) []float64 {
	var out []float64
	for _, layer := range l.Layers() {
		out = append(out, math.Round(layer.Volume*1000)/1000)
	}
	return out
}

func TestOrderingAscendingByVolume(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := New(nil)
	for i := 0; i < 50; i++ {
		l.Insert(newFakeZone(float64(1+rng.Intn(10)), scene.ItemID(i+1)))
	}
	layers := l.Layers()
	require.Len(t, layers, 50)
	assert.True(t, sort.SliceIsSorted(layers, func(i, j int) bool { return layers[i].Less(layers[j]) }),
		"слои отсортированы по объёму, при равенстве по идентификатору")

	for i := 1; i < len(layers); i++ {
		assert.False(t, layers[i].Less(layers[i-1]))
	}
}

func TestInsertDuplicateReturnsFalse(t *testing.T) {
	l := New(nil)
	z := newFakeZone(8, 1)
	assert.True(t, l.Insert(z))
	assert.False(t, l.Insert(z), "повторная вставка не добавляет")
	assert.Equal(t, 1, l.Len())

	layer, ok := l.Lookup(z.id)
	require.True(t, ok)
	assert.InDelta(t, 8.0, layer.Volume, 1e-9)
}

func TestContainsPrefixLaw(t *testing.T) {
	zs := []*fakeZone{newFakeZone(3, 1), newFakeZone(1, 2), newFakeZone(2, 3)}
	a := New(nil)
	b := New(nil)
	for _, z := range zs {
		a.Insert(z)
		b.Insert(z)
	}
	before := a.Layers()

	assert.True(t, a.Contains(b))
	assert.Equal(t, before, a.Layers(), "содержимое A не меняется")
	assert.False(t, a.SkyboxValid(), "маркер B за концом, значит и у A за концом")

	// новая сборка с дополнительной зоной содержит старую как префикс
	bigger := newFakeZone(100, 4)
	a.Insert(bigger)
	assert.True(t, a.Contains(b))
	assert.True(t, a.SkyboxValid())
	assert.Equal(t, 3, a.SkyboxIndex())
	assert.Len(t, a.Foreground(), 3)
	require.Len(t, a.Background(), 1)
	assert.Equal(t, bigger.id, a.Background()[0].ID)

	// меньшая зона впереди ломает префикс
	c := New(nil)
	for _, z := range zs {
		c.Insert(z)
	}
	c.Insert(newFakeZone(0.5, 5))
	assert.False(t, c.Contains(b))

	// короче чем префикс other
	short := New(nil)
	short.Insert(zs[1])
	assert.False(t, short.Contains(b))
}

func TestUpdateIdempotentAndRepositions(t *testing.T) {
	calls := 0
	l := New(func(*LayeredZones) { calls++ })

	small := newFakeZone(1, 1)
	mid := newFakeZone(5, 2)
	large := newFakeZone(10, 3)

	assert.True(t, l.Update(mid), "пустая коллекция: вставка")
	assert.Equal(t, 1, calls)
	l.Insert(small)
	l.Insert(large)

	before := l.Layers()
	assert.False(t, l.Update(mid))
	assert.False(t, l.Update(mid))
	assert.Equal(t, before, l.Layers(), "повторный update без изменений не двигает слой")
	assert.Equal(t, 1, calls)

	mid.volume = 20
	assert.True(t, l.Update(mid))
	assert.Equal(t, []float64{1, 10, 20}, volumes(l))
	assert.Equal(t, 2, calls)

	mid.visible = false
	assert.True(t, l.Update(mid))
	assert.Equal(t, []float64{1, 10}, volumes(l))
	_, ok := l.Lookup(mid.id)
	assert.False(t, ok, "невидимая зона удалена из индекса")

	assert.False(t, l.Update(mid), "невидимая и отсутствующая зона ничего не меняет")
}

func TestUpdateInvisibleIntoEmpty(t *testing.T) {
	l := New(nil)
	z := newFakeZone(1, 1)
	z.visible = false
	assert.False(t, l.Update(z))
	assert.True(t, l.Empty())
}

func TestSkyboxMarkerFollowsInsertAndErase(t *testing.T) {
	zs := []*fakeZone{newFakeZone(1, 1), newFakeZone(2, 2)}
	old := New(nil)
	cur := New(nil)
	for _, z := range zs {
		old.Insert(z)
		cur.Insert(z)
	}
	big := newFakeZone(10, 3)
	cur.Insert(big)
	require.True(t, cur.Contains(old))
	require.Equal(t, 2, cur.SkyboxIndex())

	// вставка перед маркером сдвигает его вместе со слоем
	cur.Insert(newFakeZone(0.5, 4))
	assert.Equal(t, 3, cur.SkyboxIndex())
	assert.Equal(t, big.id, cur.Background()[0].ID)

	// удаление слоя под маркером отправляет маркер за конец
	big.visible = false
	cur.Update(big)
	assert.False(t, cur.SkyboxValid())
	assert.Empty(t, cur.Background())
}

func TestClearInvalidatesMarker(t *testing.T) {
	l := New(nil)
	l.Insert(newFakeZone(1, 1))
	l.Insert(newFakeZone(2, 2))
	other := New(nil)
	l.Contains(other)
	assert.True(t, l.SkyboxValid())

	l.Clear()
	assert.True(t, l.Empty())
	assert.False(t, l.SkyboxValid())
	_, ok := l.Lookup(entity.NewID())
	assert.False(t, ok)
}

func TestMovePreservesMarkerValidity(t *testing.T) {
	applied := 0
	l := New(func(*LayeredZones) { applied++ })
	l.Insert(newFakeZone(1, 1))
	l.Insert(newFakeZone(2, 2))

	moved := l.Move()
	assert.True(t, l.Empty())
	assert.False(t, l.SkyboxValid())
	assert.Equal(t, 2, moved.Len())
	assert.False(t, moved.SkyboxValid(), "маркер за концом остаётся за концом")

	// добавление в перемещённую коллекцию не делает маркер валидным
	moved.Insert(newFakeZone(3, 3))
	assert.False(t, moved.SkyboxValid())
	assert.Equal(t, moved.Len(), moved.SkyboxIndex())

	// валидный маркер переезжает вместе со слоем
	empty := New(nil)
	moved.Contains(empty)
	require.True(t, moved.SkyboxValid())
	again := moved.Move()
	assert.Equal(t, 0, again.SkyboxIndex())

	again.Apply()
	assert.Equal(t, 1, applied, "владелец переезжает вместе с содержимым")
}

func TestScenarioNestedZones(t *testing.T) {
	outer := newFakeZone(10, 10)
	inner := newFakeZone(5, 5)
	l := New(nil)
	l.Insert(outer)
	l.Insert(inner)

	assert.Equal(t, []float64{5, 10}, volumes(l))
	assert.Equal(t, []scene.ItemID{5, 10}, l.RenderItemIDs())

	order := l.ApplyOrder()
	require.Len(t, order, 2)
	assert.Equal(t, inner.id, order[len(order)-1].ID, "меньшая зона применяется последней")
}
