package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miriesgo/internal/upload/models"
	"miriesgo/internal/upload/worker"
	dErrors "miriesgo/pkg/domain-errors"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	finished := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return finished }

	r.Put(&models.Job{ID: "j1", FileName: "cartera.txt", Status: models.JobQueued})
	r.MarkProcessing("j1")

	job, err := r.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, job.Status)

	results := make(chan worker.Outcome, 2)
	results <- worker.Outcome{JobID: "j1", Result: &models.ProcessResult{Status: models.JobPartial, TotalRecords: 3}}
	results <- worker.Outcome{JobID: "unknown", Err: errors.New("ignored")}
	close(results)
	r.Consume(context.Background(), results)

	job, err = r.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobPartial, job.Status)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, finished, *job.FinishedAt)
	assert.Equal(t, 3, job.Result.TotalRecords)

	_, err = r.Get("unknown")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegistryRecordsFailure(t *testing.T) {
	r := NewRegistry(0, nil)
	r.Put(&models.Job{ID: "j2", FileName: "malo.txt", Status: models.JobQueued})

	r.Complete(worker.Outcome{JobID: "j2", Err: errors.New("read file: unexpected EOF")})

	job, err := r.Get("j2")
	require.NoError(t, err)
	assert.Equal(t, models.JobError, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "malo.txt", job.Result.FileName)
	assert.Equal(t, []string{"read file: unexpected EOF"}, job.Result.Errors)
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	r.Put(&models.Job{ID: "j3", Status: models.JobQueued})

	job, err := r.Get("j3")
	require.NoError(t, err)
	job.Status = models.JobError

	again, err := r.Get("j3")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, again.Status)
}
