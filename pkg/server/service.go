package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/database"
	"github.com/mikeboe/research-bot/pkg/metrics"
	"github.com/mikeboe/research-bot/pkg/research"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrJobNotFound    = errors.New("job not found")
)

// Researcher runs one research job. *research.ResearchEngine implements it.
type Researcher interface {
	Run(ctx context.Context, task research.Task, onProgress research.ProgressFunc) research.Result
	WriteReport(ctx context.Context, topic string, res research.Result) (string, error)
}

// ResearcherFactory builds a Researcher that logs to logger.
type ResearcherFactory func(logger *slog.Logger) (Researcher, error)

// Service runs research jobs in the background and keeps their audit trail
// in Postgres.
type Service struct {
	DB            database.DBTX
	NewResearcher ResearcherFactory
	Config        *config.ResearchConfig
	Logger        *slog.Logger
	// ReportDir receives research-<id>.md for every completed job.
	ReportDir     string

	// LogHandler builds the handler job logs go to. It defaults to a
	// DBLogHandler for the job.
	LogHandler func(jobID string) slog.Handler

	wg sync.WaitGroup
}

func NewService(db database.DBTX, factory ResearcherFactory, cfg *config.ResearchConfig) *Service {
	return &Service{
		DB:            db,
		NewResearcher: factory,
		Config:        cfg,
		Logger:        slog.Default(),
		ReportDir:     ".",
	}
}

type JobConfig struct {
	Breadth int `json:"breadth"`
	Depth   int `json:"depth"`
}

type Job struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Config    JobConfig       `json:"config"`
	State     json.RawMessage `json:"state,omitempty"`
	Report    *string         `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type CreateJobRequest struct {
	Topic   string `json:"topic"`
	Breadth int    `json:"breadth,omitempty"`
	Depth   int    `json:"depth,omitempty"`
}

// normalize fills in defaults and clamps the budget.
func (s *Service) normalize(req CreateJobRequest) (CreateJobRequest, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return req, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if req.Breadth == 0 {
		req.Breadth = s.Config.Breadth
	}
	if req.Depth == 0 {
		req.Depth = s.Config.Depth
	}
	req.Breadth = config.ClampBreadth(req.Breadth)
	req.Depth = config.ClampDepth(req.Depth)
	return req, nil
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	jobCfg := JobConfig{Breadth: req.Breadth, Depth: req.Depth}
	configJSON, err := json.Marshal(jobCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}

	query := `
		INSERT INTO research_jobs (id, topic, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id::text, topic, status, created_at, updated_at
	`

	job := &Job{Config: jobCfg}
	err = s.DB.QueryRow(ctx, query, uuid.NewString(), req.Topic, configJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunJob(context.Background(), job.ID, req)
	}()

	return job, nil
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

const jobColumns = `id::text, topic, status, config, state, report, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job       Job
		configRaw []byte
		stateRaw  []byte
	)
	if err := row.Scan(&job.ID, &job.Topic, &job.Status, &configRaw, &stateRaw, &job.Report, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	if len(configRaw) > 0 {
		if err := json.Unmarshal(configRaw, &job.Config); err != nil {
			return nil, fmt.Errorf("decode job config: %w", err)
		}
	}
	if len(stateRaw) > 0 {
		job.State = json.RawMessage(stateRaw)
	}
	return &job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid uuid", ErrInvalidRequest)
	}

	query := `SELECT ` + jobColumns + ` FROM research_jobs WHERE id = $1`
	job, err := scanJob(s.DB.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs ORDER BY created_at DESC LIMIT 50`
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			s.Logger.Warn("Skipping unreadable job row", "error", err)
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID string) ([]LogEntry, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("%w: invalid uuid", ErrInvalidRequest)
	}

	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	logs := []LogEntry{}
	for rows.Next() {
		var (
			l    LogEntry
			meta []byte
		)
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &meta); err != nil {
			continue
		}
		l.Metadata = json.RawMessage(meta)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) jobLogger(jobID string) *slog.Logger {
	if s.LogHandler != nil {
		return slog.New(s.LogHandler(jobID))
	}
	return slog.New(NewDBLogHandler(s.DB, jobID))
}

// RunJob researches req for an existing job row and records the outcome. A
// job fails only when no researcher can be built or the report cannot be
// written.
func (s *Service) RunJob(ctx context.Context, jobID string, req CreateJobRequest) {
	// Update status to running
	if _, err := s.DB.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID); err != nil {
		s.Logger.Error("Failed to mark job running", "job_id", jobID, "error", err)
	}

	// Configure engine with DB logger
	dbLogger := s.jobLogger(jobID)

	researcher, err := s.NewResearcher(dbLogger)
	if err != nil {
		s.failJob(ctx, jobID, dbLogger, fmt.Sprintf("Failed to init engine: %v", err))
		return
	}

	// Hook for state persistence
	onProgress := func(state research.ProgressState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			dbLogger.Error("Failed to marshal state", "error", err)
			return
		}
		if _, err := s.DB.Exec(context.Background(),
			"UPDATE research_jobs SET state = $2, updated_at = NOW() WHERE id = $1",
			jobID, stateJSON); err != nil {
			s.Logger.Error("Failed to save state to DB", "job_id", jobID, "error", err)
		}
	}

	res := researcher.Run(ctx, research.Task{Topic: req.Topic, Breadth: req.Breadth, Depth: req.Depth}, onProgress)

	report, err := researcher.WriteReport(ctx, req.Topic, res)
	if err != nil {
		s.failJob(ctx, jobID, dbLogger, fmt.Sprintf("Research failed: %v", err))
		return
	}

	if path, err := research.SaveReport(s.ReportDir, jobID, report); err != nil {
		dbLogger.Error("Failed to save report file", "error", err)
	} else {
		dbLogger.Info("Report saved", "path", path)
	}

	// Update job with report
	if _, err := s.DB.Exec(ctx,
		"UPDATE research_jobs SET status = 'completed', report = $2, updated_at = NOW() WHERE id = $1",
		jobID, report); err != nil {
		s.Logger.Error("Failed to save final report to DB", "job_id", jobID, "error", err)
	}
	metrics.ResearchRuns.WithLabelValues(StatusCompleted).Inc()
}

func (s *Service) failJob(ctx context.Context, jobID string, logger *slog.Logger, reason string) {
	logger.Error(reason)
	if _, err := s.DB.Exec(ctx, "UPDATE research_jobs SET status = 'failed', updated_at = NOW() WHERE id = $1", jobID); err != nil {
		s.Logger.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
	metrics.ResearchRuns.WithLabelValues(StatusFailed).Inc()
}
