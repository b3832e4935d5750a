package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/signal"
)

// MemorySnapshotStore is an in-memory SnapshotStore used by tests and by
// the file-backed loader.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]map[int64]*chain.Chain // symbol -> unix millis -> chain
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string]map[int64]*chain.Chain)}
}

func (m *MemorySnapshotStore) SaveSnapshot(ctx context.Context, at time.Time, ch *chain.Chain) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySymbol, ok := m.snapshots[ch.Symbol]
	if !ok {
		bySymbol = make(map[int64]*chain.Chain)
		m.snapshots[ch.Symbol] = bySymbol
	}
	bySymbol[at.UnixMilli()] = ch
	return nil
}

func (m *MemorySnapshotStore) SnapshotTimes(ctx context.Context, symbol string) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySymbol := m.snapshots[symbol]
	out := make([]time.Time, 0, len(bySymbol))
	for millis := range bySymbol {
		out = append(out, time.UnixMilli(millis).UTC())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *MemorySnapshotStore) ChainAt(ctx context.Context, symbol string, at time.Time) (*chain.Chain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.snapshots[symbol][at.UnixMilli()]
	if !ok {
		return nil, ErrNoSnapshots
	}
	return ch, nil
}

// MemoryAlertStore is an in-memory AlertStore for tests.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]signal.Alert
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string]signal.Alert)}
}

func (m *MemoryAlertStore) InsertIfAbsent(ctx context.Context, alert signal.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.alerts[alert.ID]; exists {
		return false, nil
	}
	m.alerts[alert.ID] = alert
	return true, nil
}

func (m *MemoryAlertStore) Settle(ctx context.Context, id, result string, realizedPnl, closedAtPrice float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, exists := m.alerts[id]
	if !exists {
		return false, nil
	}
	alert.Result = result
	alert.RealizedPnl = realizedPnl
	alert.ClosedAtPrice = closedAtPrice
	alert.Status = signal.StatusExpired
	m.alerts[id] = alert
	return true, nil
}

func (m *MemoryAlertStore) Get(ctx context.Context, id string) (*signal.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, exists := m.alerts[id]
	if !exists {
		return nil, ErrAlertNotFound
	}
	return &alert, nil
}

// Len reports the number of stored alerts.
func (m *MemoryAlertStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}
