package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/researchify/pkg/database"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Report    *string         `json:"report,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config"`
	State     json.RawMessage `json:"state,omitempty"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

// JobStore persists report jobs and their logs.
type JobStore interface {
	CreateJob(ctx context.Context, topic string, config json.RawMessage) (*Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveState(ctx context.Context, id uuid.UUID, state json.RawMessage) error
	CompleteJob(ctx context.Context, id uuid.UUID, report string) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
	AppendLog(ctx context.Context, id uuid.UUID, entry LogEntry) error
	GetJobLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error)
}

// PostgresJobStore keeps jobs in report_jobs and report_logs.
type PostgresJobStore struct {
	DB *database.PostgresDB
}

func NewPostgresJobStore(db *database.PostgresDB) *PostgresJobStore {
	return &PostgresJobStore{DB: db}
}

const jobColumns = "id, topic, status, report, error, created_at, updated_at, config, state"

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	err := row.Scan(&job.ID, &job.Topic, &job.Status, &job.Report, &job.Error, &job.CreatedAt, &job.UpdatedAt, &job.Config, &job.State)
	return job, err
}

func (s *PostgresJobStore) CreateJob(ctx context.Context, topic string, config json.RawMessage) (*Job, error) {
	query := `
		INSERT INTO report_jobs (id, topic, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + jobColumns

	job, err := scanJob(s.DB.Pool.QueryRow(ctx, query, uuid.New(), topic, StatusPending, config))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(s.DB.Pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM report_jobs WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *PostgresJobStore) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.DB.Pool.Query(ctx, "SELECT "+jobColumns+" FROM report_jobs ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// update applies a SET clause to one job; $1 is the job id.
func (s *PostgresJobStore) update(ctx context.Context, id uuid.UUID, set string, args ...interface{}) error {
	tag, err := s.DB.Pool.Exec(ctx,
		"UPDATE report_jobs SET "+set+", updated_at = NOW() WHERE id = $1",
		append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresJobStore) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return s.update(ctx, id, "status = $2", status)
}

func (s *PostgresJobStore) SaveState(ctx context.Context, id uuid.UUID, state json.RawMessage) error {
	return s.update(ctx, id, "state = $2", state)
}

func (s *PostgresJobStore) CompleteJob(ctx context.Context, id uuid.UUID, report string) error {
	return s.update(ctx, id, "status = $2, report = $3", StatusCompleted, report)
}

func (s *PostgresJobStore) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	return s.update(ctx, id, "status = $2, error = $3", StatusFailed, reason)
}

func (s *PostgresJobStore) AppendLog(ctx context.Context, id uuid.UUID, entry LogEntry) error {
	query := `
		INSERT INTO report_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.DB.Pool.Exec(ctx, query, id, entry.Timestamp, entry.Level, entry.Message, entry.Metadata)
	return err
}

func (s *PostgresJobStore) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM report_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// MemoryJobStore keeps jobs in process. Used when no database is configured.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	logs map[uuid.UUID][]LogEntry
	seq  int
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*Job),
		logs: make(map[uuid.UUID][]LogEntry),
	}
}

func (m *MemoryJobStore) CreateJob(_ context.Context, topic string, config json.RawMessage) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Topic:     topic,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	c := *job
	return &c, nil
}

func (m *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	c := *job
	return &c, nil
}

func (m *MemoryJobStore) ListJobs(_ context.Context, limit int) ([]Job, error) {
	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *MemoryJobStore) update(id uuid.UUID, fn func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryJobStore) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	return m.update(id, func(j *Job) { j.Status = status })
}

func (m *MemoryJobStore) SaveState(_ context.Context, id uuid.UUID, state json.RawMessage) error {
	return m.update(id, func(j *Job) { j.State = state })
}

func (m *MemoryJobStore) CompleteJob(_ context.Context, id uuid.UUID, report string) error {
	return m.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Report = &report
	})
}

func (m *MemoryJobStore) FailJob(_ context.Context, id uuid.UUID, reason string) error {
	return m.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = &reason
	})
}

func (m *MemoryJobStore) AppendLog(_ context.Context, id uuid.UUID, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return ErrJobNotFound
	}
	m.seq++
	entry.ID = m.seq
	m.logs[id] = append(m.logs[id], entry)
	return nil
}

func (m *MemoryJobStore) GetJobLogs(_ context.Context, id uuid.UUID) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LogEntry(nil), m.logs[id]...), nil
}
