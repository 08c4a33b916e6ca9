package api

import (
	"errors"
	"sync"
	"time"
)

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines the concurrency-safe contract for render job state.
type JobRepository interface {
	// Create stores a new pending job.
	Create(job Job) error

	// Get returns a copy of the job.
	Get(id JobID) (Job, bool)

	// Transition moves a job to status, recording output or error for the
	// terminal states.
	Transition(id JobID, status JobStatus, output string, silent bool, errMsg string) error

	// ActiveCount returns the number of jobs not yet finished.
	ActiveCount() int
}

// InMemoryJobRepository is a concurrency-safe in-memory JobRepository.
type InMemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[JobID]*Job
	now  func() time.Time
}

// NewInMemoryJobRepository returns an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{jobs: make(map[JobID]*Job), now: time.Now}
}

// Create implements JobRepository.Create.
func (r *InMemoryJobRepository) Create(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return errors.New("duplicate job id")
	}
	job.Status = JobPending
	job.Created = r.now().UTC()
	r.jobs[job.ID] = &job
	return nil
}

// Get implements JobRepository.Get.
func (r *InMemoryJobRepository) Get(id JobID) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Transition implements JobRepository.Transition.
func (r *InMemoryJobRepository) Transition(id JobID, status JobStatus, output string, silent bool, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = status
	if status == JobDone || status == JobFailed {
		j.Output = output
		j.Silent = silent
		j.Error = errMsg
		j.Finished = r.now().UTC()
	}
	return nil
}

// ActiveCount implements JobRepository.ActiveCount.
func (r *InMemoryJobRepository) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, j := range r.jobs {
		if j.Status == JobPending || j.Status == JobRunning {
			n++
		}
	}
	return n
}
