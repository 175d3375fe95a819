package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/sirgraph/internal/simulation"
)

type memoryRun struct {
	run           Run
	series        []simulation.Row
	transmissions []int
	attraction    []simulation.AttractionRow
}

// MemoryStore implements ResultStore in memory, for tests and one-off
// MCP sessions without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun
}

var _ ResultStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*memoryRun)}
}

func (s *MemoryStore) BeginRun(ctx context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := prepareRun(run)
	if err != nil {
		return Run{}, err
	}
	s.runs[run.ExpIdx] = &memoryRun{run: run, transmissions: []int{}}
	return run, nil
}

func (s *MemoryStore) lookup(expidx string) (*memoryRun, error) {
	r, ok := s.runs[expidx]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", expidx, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) AppendSeries(ctx context.Context, expidx string, rows []simulation.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(expidx)
	if err != nil {
		return err
	}
	seen := make(map[int]bool, len(r.series)+len(rows))
	for _, row := range r.series {
		seen[row.T] = true
	}
	for _, row := range rows {
		if seen[row.T] {
			return fmt.Errorf("series row t=%d already stored for %s", row.T, expidx)
		}
		seen[row.T] = true
	}
	r.series = append(r.series, rows...)
	sort.SliceStable(r.series, func(i, j int) bool { return r.series[i].T < r.series[j].T })
	return nil
}

func (s *MemoryStore) SaveAttraction(ctx context.Context, expidx string, rows []simulation.AttractionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(expidx)
	if err != nil {
		return err
	}
	r.attraction = slices.Clone(rows)
	return nil
}

func (s *MemoryStore) FinishRun(ctx context.Context, expidx string, summary Summary, transmissions []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(expidx)
	if err != nil {
		return fmt.Errorf("finish %s: %w", expidx, ErrNotFound)
	}
	if summary.FinishedAt.IsZero() {
		summary.FinishedAt = time.Now()
	}
	summary.FinishedAt = summary.FinishedAt.UTC()
	r.run.Status = StatusFinished
	r.run.Summary = &summary
	r.transmissions = append([]int{}, transmissions...)
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, expidx string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[expidx]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", expidx, ErrNotFound)
	}
	run := r.run
	if run.Summary != nil {
		sum := *run.Summary
		run.Summary = &sum
	}
	return &run, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []Run
	for _, r := range s.runs {
		if filter.match(r.run) {
			runs = append(runs, r.run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ExpIdx < runs[j].ExpIdx
	})
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func (s *MemoryStore) GetSeries(ctx context.Context, expidx string) ([]simulation.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.lookup(expidx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.series), nil
}

func (s *MemoryStore) GetTransmissions(ctx context.Context, expidx string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.lookup(expidx)
	if err != nil {
		return nil, err
	}
	return append([]int{}, r.transmissions...), nil
}

func (s *MemoryStore) GetAttraction(ctx context.Context, expidx string) ([]simulation.AttractionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.lookup(expidx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.attraction), nil
}

func (s *MemoryStore) DeleteRun(ctx context.Context, expidx string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[expidx]; !ok {
		return fmt.Errorf("delete %s: %w", expidx, ErrNotFound)
	}
	delete(s.runs, expidx)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
