package internal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job states
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// JobStatus is an immutable snapshot of a bulk import job. Callers poll
// these; they never share mutable state with the worker.
type JobStatus struct {
	ID         string       `json:"id"`
	Dir        string       `json:"dir"`
	State      string       `json:"state"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
	Result     *BatchResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type jobUpdate struct {
	id     string
	status JobStatus
}

// JobStore runs directory imports on background workers, one goroutine per
// job, and serves status snapshots. Workers report through a channel to a
// single mutator goroutine, so the snapshot map has exactly one writer.
type JobStore struct {
	importer *Importer

	updates chan jobUpdate
	done    chan struct{}

	mu   sync.RWMutex
	jobs map[string]JobStatus
}

// NewJobStore creates a JobStore and starts its mutator goroutine.
func NewJobStore(importer *Importer) *JobStore {
	js := &JobStore{
		importer: importer,
		updates:  make(chan jobUpdate, 16),
		done:     make(chan struct{}),
		jobs:     make(map[string]JobStatus),
	}
	go js.run()
	return js
}

func (js *JobStore) run() {
	for {
		select {
		case update := <-js.updates:
			js.mu.Lock()
			js.jobs[update.id] = update.status
			js.mu.Unlock()
		case <-js.done:
			return
		}
	}
}

// Close stops the mutator goroutine. In-flight workers finish their current
// file list but further updates are dropped.
func (js *JobStore) Close() {
	close(js.done)
}

// Submit registers a directory import job and starts its worker. The
// returned id is the handle for Status polling.
func (js *JobStore) Submit(dir string) string {
	id := uuid.NewString()
	now := time.Now()

	pending := JobStatus{ID: id, Dir: dir, State: JobPending, StartedAt: now}
	js.mu.Lock()
	js.jobs[id] = pending
	js.mu.Unlock()

	go js.work(id, dir)
	return id
}

func (js *JobStore) work(id, dir string) {
	js.send(id, func(s *JobStatus) {
		s.State = JobRunning
	})

	defer func() {
		if r := recover(); r != nil {
			js.send(id, func(s *JobStatus) {
				s.State = JobFailed
				s.Error = fmt.Sprintf("panic: %v", r)
				s.FinishedAt = time.Now()
			})
		}
	}()

	result := js.importer.ImportDirectory(dir)

	js.send(id, func(s *JobStatus) {
		s.State = JobDone
		s.Result = result
		s.FinishedAt = time.Now()
	})
	LogInfo("job %s finished: %d imported, %d skipped, %d failed",
		id, result.Imported, result.Skipped, result.Failed)
}

func (js *JobStore) send(id string, mutate func(*JobStatus)) {
	js.mu.RLock()
	status := js.jobs[id]
	js.mu.RUnlock()

	mutate(&status)

	select {
	case js.updates <- jobUpdate{id: id, status: status}:
	case <-js.done:
	}
}

// Status returns the latest snapshot for a job id.
func (js *JobStore) Status(id string) (JobStatus, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	status, ok := js.jobs[id]
	return status, ok
}

// List returns snapshots for all known jobs.
func (js *JobStore) List() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()
	out := make([]JobStatus, 0, len(js.jobs))
	for _, status := range js.jobs {
		out = append(out, status)
	}
	return out
}
