package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPayload struct{ renders int }

func (p *countingPayload) Render(*RenderArgs) { p.renders++ }

func TestTransactionAppliedOnlyOnProcess(t *testing.T) {
	s := New()
	id := s.AllocateID()
	require.NotEqual(t, InvalidItemID, id)

	p := &countingPayload{}
	tx := &Transaction{}
	tx.ResetItem(id, p)
	s.EnqueueTransaction(tx)
	assert.False(t, s.HasItem(id), "до обработки очереди элемента нет")

	s.ProcessTransactionQueue()
	assert.True(t, s.HasItem(id))

	s.Render(&RenderArgs{})
	assert.Equal(t, 1, p.renders)

	rm := &Transaction{}
	rm.RemoveItem(id)
	s.EnqueueTransaction(rm)
	s.ProcessTransactionQueue()
	assert.Equal(t, 0, s.ItemCount())
}

func TestResetSelectionReplaces(t *testing.T) {
	s := New()

	tx := &Transaction{}
	tx.ResetSelection(Selection{Name: "RankedZones", Items: []ItemID{3, 1, 2}})
	s.EnqueueTransaction(tx)
	s.ProcessTransactionQueue()

	sel, ok := s.Selection("RankedZones")
	require.True(t, ok)
	assert.Equal(t, []ItemID{3, 1, 2}, sel.Items)

	tx = &Transaction{}
	tx.ResetSelection(Selection{Name: "RankedZones", Items: []ItemID{7}})
	s.EnqueueTransaction(tx)
	s.ProcessTransactionQueue()

	sel, _ = s.Selection("RankedZones")
	assert.Equal(t, []ItemID{7}, sel.Items, "выборка заменяется целиком")
}

func TestEmptyTransactionIgnored(t *testing.T) {
	s := New()
	s.EnqueueTransaction(&Transaction{})
	s.EnqueueTransaction(nil)
	s.ProcessTransactionQueue()
	_, ok := s.Selection("RankedZones")
	assert.False(t, ok)
}
