// Package health serves liveness and batch-progress endpoints next to the
// metrics endpoint:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /progress: the state of the current run as reported by a [Progress].
//
// Responses are JSON objects.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Snapshot is the JSON body served by /progress.
type Snapshot struct {
	RunID   string    `json:"runId"`
	Total   int       `json:"total"`
	Done    int       `json:"done"`
	Failed  int       `json:"failed"`
	Started time.Time `json:"started"`

	// Finished is true once every file has completed.
	Finished bool `json:"finished"`
}

// Progress counts completed files of a run. The zero value is ready to use.
// All methods are safe for concurrent use.
type Progress struct {
	mu   sync.Mutex
	snap Snapshot
}

// Start resets the counters for a new run of total files.
func (p *Progress) Start(runID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = Snapshot{RunID: runID, Total: total, Started: time.Now().UTC()}
}

// Complete records one finished file. failed marks it as an error.
func (p *Progress) Complete(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Done++
	if failed {
		p.snap.Failed++
	}
	p.snap.Finished = p.snap.Done >= p.snap.Total
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

type status struct {
	Status string `json:"status"`
}

// Handler serves /healthz and /progress.
type Handler struct {
	progress *Progress
}

// New creates a [Handler] reporting p. A nil p serves an empty snapshot.
func New(p *Progress) *Handler {
	if p == nil {
		p = &Progress{}
	}
	return &Handler{progress: p}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, status{Status: "ok"})
}

// Progress writes the current run snapshot.
func (h *Handler) Progress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.progress.Snapshot())
}

// Register adds the /healthz and /progress routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /progress", h.Progress)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
