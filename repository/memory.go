package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryReportRepo keeps reports in process memory. Reports are lost on
// restart.
type MemoryReportRepo struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

var _ ReportRepo = (*MemoryReportRepo)(nil)

func NewMemoryReportRepo() *MemoryReportRepo {
	return &MemoryReportRepo{reports: make(map[string]*Report)}
}

func (r *MemoryReportRepo) Save(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[report.ID] = report
	return nil
}

func (r *MemoryReportRepo) Get(_ context.Context, id string) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}

func (r *MemoryReportRepo) List(_ context.Context, limit int) ([]*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]*Report, 0, len(r.reports))
	for _, report := range r.reports {
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
