package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TaskStatusStarted    = "started"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// StartTask records the beginning of a scrape run and returns the task
// id. Task ids are wall-clock based so runs sort chronologically.
func (s *Service) StartTask(ctx context.Context, kind, triggeredBy string) (string, error) {
	id := fmt.Sprintf("%d", timezone.Now().Unix())
	if kind != "" {
		id = fmt.Sprintf("%s-%s", kind, id)
	}
	_, err := s.store.Create(ctx, TasksCollection, docstore.Document{
		"status":       TaskStatusStarted,
		"started_at":   docstore.ServerTimestamp,
		"triggered_by": triggeredBy,
	}, id)
	if err != nil {
		return "", fmt.Errorf("recording task start: %w", err)
	}
	return id, nil
}

func (s *Service) markTask(ctx context.Context, taskID string, fields docstore.Document) {
	err := s.store.Update(ctx, TasksCollection, taskID, fields)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update task record",
			"task_id", taskID, "err", err)
	}
}

// ExecuteScrapeTask runs a full listing scrape against an already
// started task record, driving it to a terminal state. Callers that
// want fire-and-forget semantics run this in a goroutine after
// StartTask.
func (s *Service) ExecuteScrapeTask(ctx context.Context, taskID string) error {
	ctx, span := tracer.Start(ctx, "ExecuteScrapeTask")
	defer span.End()
	span.SetAttributes(attribute.String("task_id", taskID))

	s.markTask(ctx, taskID, docstore.Document{"status": TaskStatusInProgress})

	start := timezone.Now()
	records, err := s.RunScrape(ctx)
	elapsed := timezone.Now().Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		s.markTask(ctx, taskID, docstore.Document{
			"status":                 TaskStatusFailed,
			"completed_at":           docstore.ServerTimestamp,
			"execution_time_seconds": elapsed.Seconds(),
			"error":                  err.Error(),
		})
		return err
	}

	s.markTask(ctx, taskID, docstore.Document{
		"status":                 TaskStatusCompleted,
		"completed_at":           docstore.ServerTimestamp,
		"universities_scraped":   len(records),
		"execution_time_seconds": elapsed.Seconds(),
	})
	return nil
}

// ExecuteProfileScrapeTask is the single-profile variant of
// ExecuteScrapeTask.
func (s *Service) ExecuteProfileScrapeTask(ctx context.Context, taskID string) error {
	ctx, span := tracer.Start(ctx, "ExecuteProfileScrapeTask")
	defer span.End()
	span.SetAttributes(attribute.String("task_id", taskID))

	s.markTask(ctx, taskID, docstore.Document{"status": TaskStatusInProgress})

	start := timezone.Now()
	_, err := s.RunProfileScrape(ctx)
	elapsed := timezone.Now().Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile scrape failed")
		s.markTask(ctx, taskID, docstore.Document{
			"status":                 TaskStatusFailed,
			"completed_at":           docstore.ServerTimestamp,
			"execution_time_seconds": elapsed.Seconds(),
			"error":                  err.Error(),
		})
		return err
	}

	s.markTask(ctx, taskID, docstore.Document{
		"status":                 TaskStatusCompleted,
		"completed_at":           docstore.ServerTimestamp,
		"universities_scraped":   1,
		"execution_time_seconds": elapsed.Seconds(),
	})
	return nil
}

// RunScrapeTask runs a tracked listing scrape synchronously.
func (s *Service) RunScrapeTask(ctx context.Context, triggeredBy string) (string, error) {
	taskID, err := s.StartTask(ctx, "", triggeredBy)
	if err != nil {
		return "", err
	}
	return taskID, s.ExecuteScrapeTask(ctx, taskID)
}

// RunProfileScrapeTask runs a tracked profile scrape synchronously.
func (s *Service) RunProfileScrapeTask(ctx context.Context, triggeredBy string) (string, error) {
	taskID, err := s.StartTask(ctx, "profile", triggeredBy)
	if err != nil {
		return "", err
	}
	return taskID, s.ExecuteProfileScrapeTask(ctx, taskID)
}

// Task fetches a single task record.
func (s *Service) Task(ctx context.Context, taskID string) (docstore.Document, error) {
	return s.store.Get(ctx, TasksCollection, taskID)
}

// Tasks lists every recorded scrape task.
func (s *Service) Tasks(ctx context.Context) ([]docstore.Document, error) {
	return s.store.Query(ctx, TasksCollection)
}
