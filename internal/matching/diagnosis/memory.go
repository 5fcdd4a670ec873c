// internal/matching/diagnosis/memory.go
package diagnosis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tax-matching-workers/internal/models"
)

type Memory struct {
	mu    sync.RWMutex
	items map[string]models.Diagnosis
}

func NewMemory(items ...models.Diagnosis) *Memory {
	m := &Memory{items: make(map[string]models.Diagnosis, len(items))}
	for _, d := range items {
		m.items[d.ID] = d
	}
	return m
}

func (m *Memory) Put(d models.Diagnosis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[d.ID] = d
}

func (m *Memory) Lookup(_ context.Context, id string) (*models.Diagnosis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDiagnosisNotFound, id)
	}
	return &d, nil
}

func (m *Memory) Latest(_ context.Context, userID string) (*models.Diagnosis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Diagnosis
	for _, d := range m.items {
		if d.UserID != userID {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			d := d
			latest = &d
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: latest for user %s", models.ErrDiagnosisNotFound, userID)
	}
	return latest, nil
}

func (m *Memory) Count(_ context.Context, from, to *time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, d := range m.items {
		if from != nil && d.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && d.CreatedAt.After(*to) {
			continue
		}
		n++
	}
	return n, nil
}
