package scraper

import (
	"context"
	"log/slog"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/chrono"
	"uniadmit-backend/lib/deadline"
	"uniadmit-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type StatusSummary struct {
	Updated int
	Skipped int
	Errored int
}

// RecomputeAdmissionStatus re-derives admissionOpen for every stored
// university from its deadline. Records without a parseable deadline
// are skipped, records already correct are left untouched, and
// per-record write failures are counted rather than aborting the
// sweep.
func (s *Service) RecomputeAdmissionStatus(ctx context.Context) (StatusSummary, error) {
	ctx, span := tracer.Start(ctx, "RecomputeAdmissionStatus")
	defer span.End()

	docs, err := s.store.Query(ctx, UniversitiesCollection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list universities")
		return StatusSummary{}, err
	}

	now := timezone.Now()
	var summary StatusSummary
	for _, doc := range docs {
		rec := RecordFromDocument(doc)

		due, ok := rec.Deadline()
		if !ok {
			summary.Skipped++
			continue
		}

		open := deadline.IsOpen(due, now)
		if open == rec.AdmissionOpen {
			summary.Skipped++
			continue
		}

		err := s.store.Update(ctx, UniversitiesCollection, rec.ID, docstore.Document{
			"admissionOpen": open,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to update admission status",
				"university", rec.Name, "err", err)
			summary.Errored++
			continue
		}
		summary.Updated++
	}

	span.SetAttributes(
		attribute.Int("updated", summary.Updated),
		attribute.Int("skipped", summary.Skipped),
		attribute.Int("errored", summary.Errored),
	)
	slog.InfoContext(ctx, "admission status recompute complete",
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errored", summary.Errored)
	return summary, nil
}

// ScheduleStatusRecompute runs the status sweep daily at midnight,
// Pakistan time.
func (s *Service) ScheduleStatusRecompute(c chrono.CronAPI) error {
	return c.Cron("0 0 * * *", func() {
		_, err := s.RecomputeAdmissionStatus(context.Background())
		if err != nil {
			slog.Error("scheduled admission status recompute failed", "err", err)
		}
	})
}
