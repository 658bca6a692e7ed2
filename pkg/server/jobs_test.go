package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	job, err := store.CreateJob(ctx, "coral reefs", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	require.NoError(t, store.SetStatus(ctx, job.ID, StatusRunning))
	require.NoError(t, store.SaveState(ctx, job.ID, json.RawMessage(`{"status":"Searching Web"}`)))
	require.NoError(t, store.CompleteJob(ctx, job.ID, "# Reefs"))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, "# Reefs", *got.Report)
	assert.JSONEq(t, `{"status":"Searching Web"}`, string(got.State))

	other, err := store.CreateJob(ctx, "tides", nil)
	require.NoError(t, err)
	require.NoError(t, store.FailJob(ctx, other.ID, "boom"))

	jobs, err := store.ListJobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestMemoryJobStoreUnknownJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	id := uuid.New()

	_, err := store.GetJob(ctx, id)
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.ErrorIs(t, store.SetStatus(ctx, id, StatusRunning), ErrJobNotFound)
	assert.ErrorIs(t, store.AppendLog(ctx, id, LogEntry{Message: "x"}), ErrJobNotFound)
}

func TestJobLogHandlerWritesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	job, err := store.CreateJob(ctx, "volcanoes", nil)
	require.NoError(t, err)

	logger := slog.New(NewJobLogHandler(store, job.ID, nil))
	logger.With("provider", "pubmed").WithGroup("req").Info("Search successful", "count", 3)
	logger.Error("Search failed", "error", errors.New("timeout"))

	logs, err := store.GetJobLogs(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "INFO", logs[0].Level)
	assert.Equal(t, "Search successful", logs[0].Message)
	assert.JSONEq(t, `{"provider":"pubmed","req.count":3}`, string(logs[0].Metadata))

	assert.Equal(t, "ERROR", logs[1].Level)
	assert.JSONEq(t, `{"error":"timeout"}`, string(logs[1].Metadata))
	assert.Less(t, logs[0].ID, logs[1].ID)
}
