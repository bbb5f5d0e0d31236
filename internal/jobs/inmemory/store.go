package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/jobs"
)

// DefaultRetention is how many jobs the store keeps before evicting the oldest.
const DefaultRetention = 500

// Store is an in-memory implementation of JobStore.
// It keeps job metadata only; snapshots are not retained.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobs.SaveSnapshotJob
	retention int
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return NewStoreWithRetention(DefaultRetention)
}

// NewStoreWithRetention creates a store that keeps at most n jobs.
func NewStoreWithRetention(n int) *Store {
	if n < 1 {
		n = DefaultRetention
	}
	return &Store{
		jobs:      make(map[string]*jobs.SaveSnapshotJob),
		retention: n,
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.SaveSnapshotJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	jobCopy.Snapshot = domain.Snapshot{}
	s.jobs[job.JobID] = &jobCopy

	if len(s.jobs) > s.retention {
		s.evictOldest()
	}

	return nil
}

// evictOldest removes the earliest created job. Callers hold the write lock.
func (s *Store) evictOldest() {
	var oldest *jobs.SaveSnapshotJob
	for _, job := range s.jobs {
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) ||
			(job.CreatedAt.Equal(oldest.CreatedAt) && job.Seq < oldest.Seq) {
			oldest = job
		}
	}
	if oldest != nil {
		delete(s.jobs, oldest.JobID)
	}
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.SaveSnapshotJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.SaveSnapshotJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.SaveSnapshotJob{}
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Seq != result[j].Seq {
			return result[i].Seq > result[j].Seq
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.SaveSnapshotJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
