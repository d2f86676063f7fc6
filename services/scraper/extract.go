package scraper

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"uniadmit-backend/lib/deadline"
	"uniadmit-backend/lib/htmlutil"
	"uniadmit-backend/lib/textutil"
	"uniadmit-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// firstMatch walks a selector fallback chain and returns the first
// non-empty selection.
func firstMatch(doc *goquery.Document, selectors FieldSelectors) *goquery.Selection {
	for _, sel := range selectors {
		found := doc.Find(sel)
		if found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}

// Extract pulls a canonical record out of a parsed detail page. Every
// field is best effort: a missing field produces a warning and an
// empty value, never an abort, since partial records are still useful
// downstream. Records with an empty name are rejected later by the
// reconciler.
func Extract(ctx context.Context, doc *goquery.Document, rules ExtractionRules, sourceURL string) UniversityRecord {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(attribute.String("url", sourceURL))

	rec := UniversityRecord{
		BasicInfo:     map[string]string{},
		Programs:      map[string][]string{},
		SourceURL:     sourceURL,
		AdmissionOpen: true,
	}

	if nameEl := firstMatch(doc, rules.Name); nameEl != nil {
		rec.Name = textutil.CleanUniversityName(htmlutil.CleanText(nameEl.Text()))
	} else {
		slog.WarnContext(ctx, "university name not found", "url", sourceURL)
	}

	if table := firstMatch(doc, rules.InfoTable); table != nil {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() != 2 {
				return
			}
			key := htmlutil.CleanText(cells.Eq(0).Text())
			value := htmlutil.CleanText(cells.Eq(1).Text())
			if key != "" {
				rec.BasicInfo[key] = value
			}
		})
	} else {
		slog.WarnContext(ctx, "basic info table not found", "url", sourceURL)
	}

	extractDescription(ctx, doc, rules, &rec)
	extractPrograms(ctx, doc, rules, &rec)
	extractApplyLink(ctx, doc, rules, &rec)

	// the deadline, when present and parseable, decides the initial
	// admission status; otherwise the record starts out open
	if d, ok := rec.Deadline(); ok {
		rec.AdmissionOpen = deadline.IsOpen(d, timezone.Now())
	}

	return rec
}

func extractDescription(ctx context.Context, doc *goquery.Document, rules ExtractionRules, rec *UniversityRecord) {
	if rules.Description == "" {
		return
	}
	section := doc.Find(rules.Description)
	if section.Length() == 0 {
		slog.WarnContext(ctx, "description section not found", "url", rec.SourceURL)
		return
	}
	heading := section.Find(rules.DescriptionHeading)
	if heading.Length() == 0 {
		slog.WarnContext(ctx, "description heading not found", "url", rec.SourceURL)
		return
	}
	rec.Description = htmlutil.CleanText(heading.First().Text())
}

func extractPrograms(ctx context.Context, doc *goquery.Document, rules ExtractionRules, rec *UniversityRecord) {
	section := doc.Find(rules.ProgramsSection)
	if section.Length() == 0 {
		slog.WarnContext(ctx, "programs section not found", "url", rec.SourceURL)
		return
	}

	section.Find(rules.ProgramCategory).Each(func(_ int, category *goquery.Selection) {
		title := category.Find(rules.CategoryTitle)
		list := category.Find(rules.ProgramList)
		// subsections missing either part are decorative, skip them
		if title.Length() == 0 || list.Length() == 0 {
			return
		}

		categoryName := htmlutil.CleanText(title.First().Text())
		var programs []string
		list.Find(rules.ProgramItem).Each(func(_ int, item *goquery.Selection) {
			name := textutil.CleanProgramName(htmlutil.CleanText(item.Text()))
			if name != "" {
				programs = append(programs, name)
			}
		})
		if len(programs) > 0 {
			rec.Programs[categoryName] = programs
		}
	})
}

var applyTextRegex = regexp.MustCompile(`(?i)apply`)

func extractApplyLink(ctx context.Context, doc *goquery.Document, rules ExtractionRules, rec *UniversityRecord) {
	section := doc.Find(rules.ApplySection)
	if section.Length() > 0 {
		href, ok := section.Find("a[href]").First().Attr("href")
		if ok && href != "" {
			rec.ApplyLink = href
			return
		}
		slog.WarnContext(ctx, "apply link not found in apply section", "url", rec.SourceURL)
	}

	// fall back to any anchor on the page whose visible text says apply
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !applyTextRegex.MatchString(strings.TrimSpace(a.Text())) {
			return true
		}
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return true
		}
		rec.ApplyLink = href
		return false
	})
	if rec.ApplyLink == "" {
		slog.WarnContext(ctx, "apply link not found", "url", rec.SourceURL)
	}
}
