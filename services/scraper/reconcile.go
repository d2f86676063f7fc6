package scraper

import (
	"context"
	"strings"

	"uniadmit-backend/docstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// urlKey derives a stable document id from the trailing path segment
// of a detail-page URL, e.g. ".../university/comsats" yields
// "comsats". Empty when the URL has no usable segment.
func urlKey(sourceURL string) string {
	trimmed := strings.TrimRight(sourceURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	return trimmed[idx+1:]
}

// reconcile upserts a record. URLs with a stable trailing segment
// write straight to that id, overwriting any previous scrape of the
// same page. Records without one fall back to a name lookup: update
// the first match, or create a fresh document.
func (s *Service) reconcile(ctx context.Context, rec UniversityRecord) (string, error) {
	ctx, span := tracer.Start(ctx, "reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("university", rec.Name))

	if key := urlKey(rec.SourceURL); key != "" {
		id, err := s.store.Create(ctx, UniversitiesCollection, rec.Document(), key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert by url key")
			return "", err
		}
		return id, nil
	}

	return s.reconcileByName(ctx, rec)
}

// reconcileByName upserts keyed on the university name: the first
// existing match is updated in place, otherwise a new document is
// created with a generated id.
func (s *Service) reconcileByName(ctx context.Context, rec UniversityRecord) (string, error) {
	ctx, span := tracer.Start(ctx, "reconcileByName")
	defer span.End()
	span.SetAttributes(attribute.String("university", rec.Name))

	existing, err := s.store.Query(ctx, UniversitiesCollection,
		docstore.Filter{Field: "name", Op: "==", Value: rec.Name})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query by name")
		return "", err
	}
	if len(existing) > 0 {
		id, _ := existing[0]["id"].(string)
		err = s.store.Update(ctx, UniversitiesCollection, id, rec.Document())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to update by name")
			return "", err
		}
		return id, nil
	}

	id, err := s.store.Create(ctx, UniversitiesCollection, rec.Document(), "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create record")
		return "", err
	}
	return id, nil
}
