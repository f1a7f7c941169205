package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(id, channelID uint32) StandardJob {
	return StandardJob{jobID: id, channelID: channelID}
}

func TestAddFutureJobThenActivate(t *testing.T) {
	s := NewDefaultJobStore()
	job := newTestJob(1, 7)
	s.AddFutureJob(42, job)

	assert.Len(t, s.FutureJobs(), 1)
	assert.Equal(t, uint32(1), s.FutureTemplateToJobID()[42])

	err := s.ActivateFutureJob(42, 1700000000)
	require.NoError(t, err)

	active, ok := s.ActiveJob()
	require.True(t, ok)
	assert.Equal(t, uint32(1), active.JobID())
	require.NotNil(t, active.MinNtime())
	assert.Equal(t, uint32(1700000000), *active.MinNtime())

	assert.Empty(t, s.FutureJobs())
}

func TestActivateFutureJobUnknownTemplateID(t *testing.T) {
	s := NewDefaultJobStore()
	err := s.ActivateFutureJob(999, 0)
	assert.ErrorIs(t, err, ErrTemplateIDNotFound)
}

func TestAddActiveJobMovesPriorToPast(t *testing.T) {
	s := NewDefaultJobStore()
	s.AddActiveJob(newTestJob(1, 7))
	s.AddActiveJob(newTestJob(2, 7))

	active, ok := s.ActiveJob()
	require.True(t, ok)
	assert.Equal(t, uint32(2), active.JobID())

	past, ok := s.LookupPastJob(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), past.JobID())
}

func TestActivateFutureJobMovesPriorActiveAndPastToStale(t *testing.T) {
	s := NewDefaultJobStore()
	s.AddActiveJob(newTestJob(1, 7))
	s.AddActiveJob(newTestJob(2, 7)) // 1 -> past, 2 -> active

	s.AddFutureJob(100, newTestJob(3, 7))
	err := s.ActivateFutureJob(100, 42)
	require.NoError(t, err)

	active, ok := s.ActiveJob()
	require.True(t, ok)
	assert.Equal(t, uint32(3), active.JobID())

	_, ok = s.LookupStaleJob(1)
	assert.True(t, ok, "prior past job should have become stale")
	_, ok = s.LookupStaleJob(2)
	assert.True(t, ok, "prior active job should have become stale")
	assert.Empty(t, s.PastJobs())
}

func TestActivateFutureJobClearsPriorStaleGeneration(t *testing.T) {
	s := NewDefaultJobStore()
	s.AddActiveJob(newTestJob(1, 7))
	s.AddFutureJob(100, newTestJob(2, 7))
	require.NoError(t, s.ActivateFutureJob(100, 1))
	_, ok := s.LookupStaleJob(1)
	require.True(t, ok)

	s.AddFutureJob(200, newTestJob(3, 7))
	require.NoError(t, s.ActivateFutureJob(200, 2))

	// Job 1 was only ever in the first stale generation; the second
	// activation must have replaced it, not accumulated onto it.
	_, ok = s.LookupStaleJob(1)
	assert.False(t, ok)
	_, ok = s.LookupStaleJob(2)
	assert.True(t, ok)
}

func TestLookupMissingJobsReturnFalse(t *testing.T) {
	s := NewDefaultJobStore()
	_, ok := s.LookupPastJob(1)
	assert.False(t, ok)
	_, ok = s.LookupStaleJob(1)
	assert.False(t, ok)
	_, ok = s.ActiveJob()
	assert.False(t, ok)
}
