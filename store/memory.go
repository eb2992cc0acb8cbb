package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*Run)}
}

// SaveRun stores a copy of the run.
func (m *Memory) SaveRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return ErrDuplicateRun
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (m *Memory) ListRuns(_ context.Context) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunSummary, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.Summarize())
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) DeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(m.runs, id)
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneRun(r *Run) *Run {
	c := *r
	c.Networks = slices.Clone(r.Networks)
	c.Allocations = slices.Clone(r.Allocations)
	c.Summary = slices.Clone(r.Summary)
	c.Leftovers = slices.Clone(r.Leftovers)
	c.SupervisorSplits = slices.Clone(r.SupervisorSplits)
	return &c
}

// sortNewestFirst orders by creation time descending, then id for stability.
func sortNewestFirst(runs []RunSummary) {
	slices.SortFunc(runs, func(a, b RunSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
