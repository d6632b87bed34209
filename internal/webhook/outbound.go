package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/eventbus"
	"github.com/annel0/entity-renderer/internal/logging"
)

// AllSignals подписка на все сигналы
const AllSignals = "*"

var ErrInvalidHook = errors.New("webhook: url and signals are required")

// Hook исходящий webhook
type Hook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Secret       string     `json:"secret,omitempty"`
	Signals      []string   `json:"signals"` // имена сигналов или "*"
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // секунды
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	Delivered    int        `json:"delivered"`
	FailureCount int        `json:"failure_count"`
}

// Delivery тело запроса
type Delivery struct {
	Signal    string    `json:"signal"`
	EntityID  entity.ID `json:"entity_id"`
	OtherID   entity.ID `json:"other_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
	Source    string    `json:"source"`
	Timestamp int64     `json:"timestamp"`
}

// Options параметры менеджера
type Options struct {
	Source    string
	QueueSize int
	Client    *http.Client
	// Backoff пауза перед повтором attempt (с нуля)
	Backoff func(attempt int) time.Duration
	Clock   func() time.Time
}

// Manager рассылает сигналы рендерера подписанным webhook'ам
type Manager struct {
	opts   Options
	log    *logging.Logger
	queue  chan Delivery
	mu     sync.RWMutex
	hooks  map[uint64]*Hook
	nextID uint64

	inflight sync.WaitGroup
	started  atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager создаёт менеджер; доставка начинается после Start
func NewManager(opts Options) *Manager {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second }
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		opts:   opts,
		log:    logging.GetComponentLogger("webhook"),
		queue:  make(chan Delivery, opts.QueueSize),
		hooks:  make(map[uint64]*Hook),
		nextID: 1,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Add регистрирует webhook и возвращает его копию с ID
func (m *Manager) Add(h Hook) (Hook, error) {
	if h.URL == "" || len(h.Signals) == 0 {
		return Hook{}, ErrInvalidHook
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	h.ID = m.nextID
	m.nextID++
	h.CreatedAt = m.opts.Clock()
	h.Active = true
	if h.Timeout == 0 {
		h.Timeout = 30
	}
	if h.RetryCount == 0 {
		h.RetryCount = 3
	}
	if h.Name == "" {
		h.Name = fmt.Sprintf("hook-%d", h.ID)
	}

	m.hooks[h.ID] = &h
	return h, nil
}

// List копии всех webhook'ов по возрастанию ID
func (m *Manager) List() []Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Get(id uint64) (Hook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hooks[id]
	if !ok {
		return Hook{}, false
	}
	return *h, true
}

// SetActive включает или выключает webhook
func (m *Manager) SetActive(id uint64, active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hooks[id]
	if ok {
		h.Active = active
	}
	return ok
}

func (m *Manager) Remove(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hooks[id]; !ok {
		return false
	}
	delete(m.hooks, id)
	return true
}

// Handle ставит сигнал в очередь; при переполнении сигнал пропускается
func (m *Manager) Handle(rec eventbus.SignalRecord) {
	d := Delivery{
		Signal:    string(rec.Event.Name),
		EntityID:  rec.Event.EntityID,
		OtherID:   rec.Event.OtherID,
		Message:   rec.Event.Message,
		At:        rec.At,
		Source:    m.opts.Source,
		Timestamp: m.opts.Clock().Unix(),
	}
	select {
	case m.queue <- d:
	default:
		m.log.Warn("⚠️ Очередь webhook'ов переполнена, сигнал %s пропущен", d.Signal)
	}
}

// Start запускает обработку очереди
func (m *Manager) Start(ctx context.Context) {
	if m.started.Swap(true) {
		return
	}
	go m.worker(ctx)
}

func (m *Manager) worker(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.quit:
			return
		case d := <-m.queue:
			m.process(ctx, d)
		}
	}
}

// Stop останавливает обработку и дожидается отправок в полёте.
// Безопасен без Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		if m.started.Load() {
			<-m.done
		}
	})
	m.inflight.Wait()
}

func (m *Manager) process(ctx context.Context, d Delivery) {
	m.mu.RLock()
	targets := make([]Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		if h.Active && subscribed(h, d.Signal) {
			targets = append(targets, *h)
		}
	}
	m.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	body, err := json.Marshal(d)
	if err != nil {
		m.log.Error("❌ Ошибка маршалинга сигнала %s: %v", d.Signal, err)
		return
	}
	for _, h := range targets {
		m.inflight.Add(1)
		go func(h Hook) {
			defer m.inflight.Done()
			ok := m.send(ctx, h, d.Signal, body)
			m.record(h.ID, ok)
		}(h)
	}
}

func subscribed(h *Hook, signal string) bool {
	return slices.Contains(h.Signals, AllSignals) || slices.Contains(h.Signals, signal)
}

// send отправляет тело с повторами; true при ответе 2xx
func (m *Manager) send(ctx context.Context, h Hook, signal string, body []byte) bool {
	for attempt := 0; attempt <= h.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(m.opts.Backoff(attempt - 1)):
			case <-ctx.Done():
				return false
			}
		}

		status, err := m.post(ctx, h, signal, body)
		if err != nil {
			m.log.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, h.RetryCount+1, h.Name, err)
			continue
		}
		if status >= 200 && status < 300 {
			m.log.Debug("✅ Сигнал %s отправлен в webhook %s", signal, h.Name)
			return true
		}
		m.log.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", h.Name, status, attempt+1)
	}
	return false
}

func (m *Manager) post(ctx context.Context, h Hook, signal string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "entity-renderer/1.0")
	req.Header.Set("X-Signal", signal)
	req.Header.Set("X-Source", m.opts.Source)
	if h.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, h.Secret))
	}

	resp, err := m.opts.Client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (m *Manager) record(id uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, exists := m.hooks[id]
	if !exists {
		return
	}
	now := m.opts.Clock()
	h.LastUsed = &now
	if ok {
		h.Delivered++
	} else {
		h.FailureCount++
	}
}

// Sign HMAC-SHA256 подпись тела в формате "sha256=<hex>"
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись получателем
func Verify(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
