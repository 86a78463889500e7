// Package status holds the in-memory progress projection the HTTP layer
// reads from while the runner writes to it (C10). It holds only what the
// runner has written since the process started; nothing in this package
// persists snapshots or rebuilds them from the on-disk stage markers
// after a restart.
package status

import (
	"sync"

	"github.com/clipforge/pipeline/internal/domain"
)

const TotalStages = 6

// Snapshot is the status payload the §6 HTTP surface returns.
type Snapshot struct {
	Status          domain.Status `json:"status"`
	CurrentStep     int           `json:"current_step"`
	TotalSteps      int           `json:"total_steps"`
	StepName        string        `json:"step_name,omitempty"`
	ProgressPercent float64       `json:"progress_percent"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// Projection is the process-wide map of project_id -> Snapshot.
type Projection struct {
	mu sync.RWMutex
	m  map[string]Snapshot
}

func NewProjection() *Projection {
	return &Projection{m: make(map[string]Snapshot)}
}

func (p *Projection) Set(projectID string, s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[projectID] = s
}

func (p *Projection) Get(projectID string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.m[projectID]
	return s, ok
}

// EntryPercent is the progress percentage reported when a stage begins:
// ((stage-1)/total)*100.
func EntryPercent(stage int) float64 {
	return float64(stage-1) / float64(TotalStages) * 100
}

// ExitPercent is the progress percentage reported when a stage
// completes: (stage/total)*100, except the final stage reports 100.
func ExitPercent(stage int) float64 {
	if stage >= TotalStages {
		return 100
	}
	return float64(stage) / float64(TotalStages) * 100
}
