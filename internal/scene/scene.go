package scene

import (
	"sync"
)

// ItemID идентификатор элемента сцены рендера
type ItemID uint64

// InvalidItemID элемент не выделен
const InvalidItemID ItemID = 0

// RenderArgs параметры кадра
type RenderArgs struct {
	// Now момент кадра в наносекундах unix
	Now int64
}

// Payload то, что элемент сцены умеет отрисовать
type Payload interface {
	Render(args *RenderArgs)
}

// Selection именованный упорядоченный список элементов
type Selection struct {
	Name  string
	Items []ItemID
}

// Transaction пакет изменений сцены, применяемый атомарно
type Transaction struct {
	resets     map[ItemID]Payload
	removes    []ItemID
	selections []Selection
}

// ResetItem добавляет или заменяет payload элемента
func (t *Transaction) ResetItem(id ItemID, p Payload) {
	if t.resets == nil {
		t.resets = make(map[ItemID]Payload)
	}
	t.resets[id] = p
}

// RemoveItem удаляет элемент
func (t *Transaction) RemoveItem(id ItemID) {
	t.removes = append(t.removes, id)
}

// ResetSelection полностью заменяет выборку с тем же именем
func (t *Transaction) ResetSelection(sel Selection) {
	items := make([]ItemID, len(sel.Items))
	copy(items, sel.Items)
	t.selections = append(t.selections, Selection{Name: sel.Name, Items: items})
}

// Empty true если транзакция ничего не меняет
func (t *Transaction) Empty() bool {
	return len(t.resets) == 0 && len(t.removes) == 0 && len(t.selections) == 0
}

// Scene сцена рендера: элементы, выборки и очередь транзакций
type Scene struct {
	mu         sync.Mutex
	nextID     ItemID
	items      map[ItemID]Payload
	selections map[string]Selection
	pending    []*Transaction
}

// New создаёт пустую сцену
func New() *Scene {
	return &Scene{
		items:      make(map[ItemID]Payload),
		selections: make(map[string]Selection),
	}
}

// AllocateID выделяет новый идентификатор элемента
func (s *Scene) AllocateID() ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// EnqueueTransaction ставит транзакцию в очередь; применяется в ProcessTransactionQueue
func (s *Scene) EnqueueTransaction(tx *Transaction) {
	if tx == nil || tx.Empty() {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, tx)
	s.mu.Unlock()
}

// ProcessTransactionQueue применяет накопленные транзакции в порядке постановки
func (s *Scene) ProcessTransactionQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.pending {
		for id, p := range tx.resets {
			s.items[id] = p
		}
		for _, id := range tx.removes {
			delete(s.items, id)
		}
		for _, sel := range tx.selections {
			s.selections[sel.Name] = sel
		}
	}
	s.pending = nil
}

// Selection возвращает копию выборки по имени
func (s *Scene) Selection(name string) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.selections[name]
	if !ok {
		return Selection{}, false
	}
	items := make([]ItemID, len(sel.Items))
	copy(items, sel.Items)
	return Selection{Name: sel.Name, Items: items}, true
}

func (s *Scene) HasItem(id ItemID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok
}

func (s *Scene) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Render отрисовывает все элементы сцены
func (s *Scene) Render(args *RenderArgs) {
	s.mu.Lock()
	payloads := make([]Payload, 0, len(s.items))
	for _, p := range s.items {
		payloads = append(payloads, p)
	}
	s.mu.Unlock()

	for _, p := range payloads {
		p.Render(args)
	}
}
