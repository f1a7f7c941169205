package jobs

import "fmt"

// JobStore is the behavioral contract a Standard Channel depends on for job
// lifecycle tracking. It is defined by its operations, not a particular
// container — DefaultJobStore is the map-backed implementation this
// repository provides, but callers may substitute their own.
type JobStore interface {
	// AddFutureJob inserts job into the future collection, indexed by
	// templateID.
	AddFutureJob(templateID uint64, job StandardJob)
	// AddActiveJob moves the current active job (if any) into past, then
	// installs job as the new active job.
	AddActiveJob(job StandardJob)
	// ActivateFutureJob removes the job registered under templateID from
	// future, sets its min_ntime to headerTimestamp, moves the prior
	// active job and all past jobs into stale (after first clearing the
	// previous stale set), and installs it as active. Returns
	// ErrTemplateIDNotFound if templateID has no registered future job.
	ActivateFutureJob(templateID uint64, headerTimestamp uint32) error

	ActiveJob() (StandardJob, bool)
	FutureJobs() map[uint32]StandardJob
	FutureTemplateToJobID() map[uint64]uint32
	PastJobs() map[uint32]StandardJob
	StaleJobs() map[uint32]StandardJob

	// LookupPastJob and LookupStaleJob give O(1) single-job lookups for the
	// channel's share-validation hot path, avoiding a full-map copy per
	// submitted share.
	LookupPastJob(jobID uint32) (StandardJob, bool)
	LookupStaleJob(jobID uint32) (StandardJob, bool)
}

// DefaultJobStore is the map-backed JobStore implementation. It maintains
// the four disjoint collections described by the contract above as four
// separate maps rather than one flat table, since each generation needs
// its own transition behavior on a chain-tip change.
type DefaultJobStore struct {
	active                 *StandardJob
	future                 map[uint32]StandardJob
	futureTemplateToJobID  map[uint64]uint32
	past                   map[uint32]StandardJob
	stale                  map[uint32]StandardJob
}

// NewDefaultJobStore returns an empty DefaultJobStore.
func NewDefaultJobStore() *DefaultJobStore {
	return &DefaultJobStore{
		future:                make(map[uint32]StandardJob),
		futureTemplateToJobID: make(map[uint64]uint32),
		past:                  make(map[uint32]StandardJob),
		stale:                 make(map[uint32]StandardJob),
	}
}

func (s *DefaultJobStore) AddFutureJob(templateID uint64, job StandardJob) {
	s.future[job.JobID()] = job
	s.futureTemplateToJobID[templateID] = job.JobID()
}

func (s *DefaultJobStore) AddActiveJob(job StandardJob) {
	if s.active != nil {
		s.past[s.active.JobID()] = *s.active
	}
	j := job
	s.active = &j
}

func (s *DefaultJobStore) ActivateFutureJob(templateID uint64, headerTimestamp uint32) error {
	jobID, ok := s.futureTemplateToJobID[templateID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTemplateIDNotFound, templateID)
	}
	job, ok := s.future[jobID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTemplateIDNotFound, templateID)
	}
	delete(s.future, jobID)
	delete(s.futureTemplateToJobID, templateID)

	job.activate(headerTimestamp)

	// Clear the prior stale generation, then fold the prior active and
	// past jobs from the outgoing tip into it.
	s.stale = make(map[uint32]StandardJob, len(s.past)+1)
	if s.active != nil {
		s.stale[s.active.JobID()] = *s.active
	}
	for id, pastJob := range s.past {
		s.stale[id] = pastJob
	}
	s.past = make(map[uint32]StandardJob)

	s.active = &job
	return nil
}

func (s *DefaultJobStore) ActiveJob() (StandardJob, bool) {
	if s.active == nil {
		return StandardJob{}, false
	}
	return *s.active, true
}

func (s *DefaultJobStore) FutureJobs() map[uint32]StandardJob {
	out := make(map[uint32]StandardJob, len(s.future))
	for k, v := range s.future {
		out[k] = v
	}
	return out
}

func (s *DefaultJobStore) FutureTemplateToJobID() map[uint64]uint32 {
	out := make(map[uint64]uint32, len(s.futureTemplateToJobID))
	for k, v := range s.futureTemplateToJobID {
		out[k] = v
	}
	return out
}

func (s *DefaultJobStore) PastJobs() map[uint32]StandardJob {
	out := make(map[uint32]StandardJob, len(s.past))
	for k, v := range s.past {
		out[k] = v
	}
	return out
}

func (s *DefaultJobStore) StaleJobs() map[uint32]StandardJob {
	out := make(map[uint32]StandardJob, len(s.stale))
	for k, v := range s.stale {
		out[k] = v
	}
	return out
}

func (s *DefaultJobStore) LookupPastJob(jobID uint32) (StandardJob, bool) {
	j, ok := s.past[jobID]
	return j, ok
}

func (s *DefaultJobStore) LookupStaleJob(jobID uint32) (StandardJob, bool) {
	j, ok := s.stale[jobID]
	return j, ok
}
