package bootstrap

import (
	"sort"
	"sync"
)

// Status values used across Result and PhaseResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusDegraded   = "degraded"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
)

// Result is the aggregate result of a full bootstrap run.
// sync.Mutex is embedded so phases can be written concurrently from multiple
// goroutines. Callers must hold the mutex before marshalling while phase
// writers are active.
type Result struct {
	sync.Mutex
	Status string                 `json:"status"` // "ok", "degraded", "error", "in-progress"
	Phases map[string]PhaseResult `json:"phases"`
}

// Ready reports whether traffic may be served after r. A nil Result means no
// run has completed.
func (r *Result) Ready() bool {
	return r != nil && (r.Status == StatusOK || r.Status == StatusDegraded)
}

// Failed returns the sorted names of phases that ended in StatusError. It must
// only be called on a completed Result.
func (r *Result) Failed() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name, p := range r.Phases {
		if p.Status == StatusError {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PhaseResult represents the outcome of a single bootstrap phase.
type PhaseResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // "ok", "error", "skipped"
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

// ProbeResult is returned by RunDeepHealth for each dependency.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}
