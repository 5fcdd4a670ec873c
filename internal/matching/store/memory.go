// internal/matching/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"tax-matching-workers/internal/models"
)

// Memory keeps snapshots in process. Writes swap the whole decision slice so
// readers never see a partial snapshot.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]*models.MatchSnapshot
}

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string]*models.MatchSnapshot)}
}

func (m *Memory) Replace(_ context.Context, snapshot *models.MatchSnapshot) error {
	cp := clone(snapshot)
	m.mu.Lock()
	m.snapshots[snapshot.SourceID] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReplaceIfAbsent(_ context.Context, snapshot *models.MatchSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.snapshots[snapshot.SourceID]; !existing.IsEmpty() {
		return false, nil
	}
	m.snapshots[snapshot.SourceID] = clone(snapshot)
	return true, nil
}

func (m *Memory) Read(_ context.Context, sourceID string) (*models.MatchSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[sourceID]
	if !ok {
		return empty(sourceID), nil
	}
	return clone(snap), nil
}

func (m *Memory) Stats(_ context.Context, from, to *time.Time) (*models.MatchingStats, error) {
	m.mu.RLock()
	all := make([]*models.MatchSnapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		all = append(all, snap)
	}
	m.mu.RUnlock()

	return summarize(all, from, to), nil
}

func empty(sourceID string) *models.MatchSnapshot {
	return &models.MatchSnapshot{SourceID: sourceID, Decisions: []models.MatchDecision{}}
}

func clone(snap *models.MatchSnapshot) *models.MatchSnapshot {
	cp := *snap
	cp.Decisions = make([]models.MatchDecision, len(snap.Decisions))
	for i, d := range snap.Decisions {
		d.Reasons = append([]models.FactorResult(nil), d.Reasons...)
		cp.Decisions[i] = d
	}
	return &cp
}
