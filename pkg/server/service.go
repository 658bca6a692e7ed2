package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research"
)

// EngineFactory builds a report engine that logs to logger.
type EngineFactory func(logger *slog.Logger) *research.ResearchEngine

type Service struct {
	Jobs      JobStore
	Sessions  *localdocs.Registry
	NewEngine EngineFactory
	Logger    *slog.Logger
}

func NewService(jobs JobStore, sessions *localdocs.Registry, newEngine EngineFactory) *Service {
	return &Service{
		Jobs:      jobs,
		Sessions:  sessions,
		NewEngine: newEngine,
		Logger:    slog.Default(),
	}
}

type CreateJobRequest struct {
	Topic     string `json:"topic"`
	SessionID string `json:"session_id,omitempty"`
}

// JobState is the progress snapshot stored with a job.
type JobState struct {
	Status   string                  `json:"status"`
	Sources  []research.SearchResult `json:"sources,omitempty"`
	Warnings []string                `json:"warnings,omitempty"`
}

// library resolves an optional session id.
func (s *Service) library(sessionID string) (*localdocs.Library, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.Sessions.Get(sessionID)
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, research.ErrEmptyTopic
	}
	lib, err := s.library(req.SessionID)
	if err != nil {
		return nil, err
	}

	configJSON, _ := json.Marshal(map[string]interface{}{
		"session_id": req.SessionID,
	})

	job, err := s.Jobs.CreateJob(ctx, topic, configJSON)
	if err != nil {
		return nil, err
	}

	go s.runWorker(job.ID, topic, lib)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.Jobs.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	return s.Jobs.ListJobs(ctx, 50)
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	if _, err := s.Jobs.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.Jobs.GetJobLogs(ctx, jobID)
}

func (s *Service) runWorker(jobID uuid.UUID, topic string, lib *localdocs.Library) {
	ctx := context.Background()

	_ = s.Jobs.SetStatus(ctx, jobID, StatusRunning)

	jobLogger := slog.New(NewJobLogHandler(s.Jobs, jobID, s.Logger.Handler()))
	engine := s.NewEngine(jobLogger)

	state := JobState{Status: StatusRunning}
	saveState := func() {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			jobLogger.Error("Failed to marshal state", "error", err)
			return
		}
		if err := s.Jobs.SaveState(ctx, jobID, stateJSON); err != nil {
			s.Logger.Error("Failed to save state", "job_id", jobID, "error", err)
		}
	}
	engine.OnStatus = func(status string) {
		state.Status = status
		saveState()
	}

	report, err := engine.Run(ctx, research.Request{Topic: topic, Library: libraryOrNil(lib)})
	if err != nil {
		s.failJob(ctx, jobLogger, jobID, err)
		return
	}

	state.Status = StatusCompleted
	state.Sources = report.Sources
	state.Warnings = report.Warnings
	saveState()

	if err := s.Jobs.CompleteJob(ctx, jobID, report.Markdown); err != nil {
		jobLogger.Error("Failed to save final report", "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, err error) {
	reason := fmt.Sprintf("Research failed: %v", err)
	if errors.Is(err, research.ErrNoResults) {
		reason = research.FailureMessage
	}
	logger.Error(reason)

	if err := s.Jobs.FailJob(ctx, jobID, reason); err != nil {
		s.Logger.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
}

type ReportRequest struct {
	Topic     string `json:"topic"`
	SessionID string `json:"session_id,omitempty"`
}

// GenerateReport runs a report synchronously.
func (s *Service) GenerateReport(ctx context.Context, req ReportRequest) (*research.Report, error) {
	lib, err := s.library(req.SessionID)
	if err != nil {
		return nil, err
	}
	return s.NewEngine(s.Logger).Run(ctx, research.Request{Topic: req.Topic, Library: libraryOrNil(lib)})
}

// SearchSources runs only the search step for topic.
func (s *Service) SearchSources(ctx context.Context, topic, sessionID string) ([]research.SearchResult, []string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, nil, research.ErrEmptyTopic
	}
	lib, err := s.library(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s.NewEngine(s.Logger).SearchSources(ctx, topic, libraryOrNil(lib))
}

// SearchLocalDocuments queries the library of one session.
func (s *Service) SearchLocalDocuments(ctx context.Context, sessionID, query string) (string, error) {
	lib, err := s.Sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	res, err := lib.Search(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// CreateSession opens an empty document library.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	id, _, err := s.Sessions.Create(ctx)
	return id, err
}

// DeleteSession frees a session's library and its index.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.Sessions.Delete(ctx, id)
}

// IngestResult reports the outcome of one upload request.
type IngestResult struct {
	SessionID string                 `json:"session_id"`
	Ready     bool                   `json:"ready"`
	Files     []localdocs.FileStatus `json:"files"`
}

// IngestDocuments adds uploads to a session. Unsupported types are reported
// and left out of the library.
func (s *Service) IngestDocuments(ctx context.Context, sessionID string, uploads []localdocs.Upload, ocr bool) (*IngestResult, error) {
	lib, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var accepted []localdocs.Upload
	var rejected []localdocs.FileStatus
	for _, up := range uploads {
		if !extract.SupportedUpload(up.Name) {
			rejected = append(rejected, localdocs.FileStatus{Name: up.Name, Error: extract.ErrUnsupported.Error()})
			continue
		}
		accepted = append(accepted, up)
	}
	if len(accepted) == 0 {
		return &IngestResult{SessionID: sessionID, Ready: lib.Ready(), Files: rejected}, extract.ErrUnsupported
	}

	statuses, err := lib.Ingest(ctx, accepted, ocr)
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		SessionID: sessionID,
		Ready:     lib.Ready(),
		Files:     append(statuses, rejected...),
	}, nil
}

// libraryOrNil keeps a nil *Library from becoming a non-nil interface.
func libraryOrNil(lib *localdocs.Library) research.Library {
	if lib == nil {
		return nil
	}
	return lib
}
