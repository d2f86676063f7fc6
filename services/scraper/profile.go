package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"uniadmit-backend/lib/deadline"
	"uniadmit-backend/lib/htmlutil"
	"uniadmit-backend/lib/textutil"
	"uniadmit-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ProfileCategory is one program category of a profile source,
// recognized by keywords in announcement link titles.
type ProfileCategory struct {
	Name     string
	Keywords []string
	// Secondary routes the category's matched link into the phd apply
	// link slot instead of replacing the main apply link.
	Secondary bool
	// Fallback is used when the announcement pages yield no programs
	// for the category.
	Fallback []string
}

// ProfileSource describes an institution scraped directly off its own
// admissions portal rather than through a listing site. The seed
// fields fill in whatever the portal never publishes.
type ProfileSource struct {
	Name          string
	AdmissionsURL string
	// LinkBase is the origin announcement hrefs resolve against.
	LinkBase  string
	SourceURL string

	Description string
	BasicInfo   map[string]string
	ApplyLink   string

	// LinkKeywords select announcement links off the admissions page.
	LinkKeywords []string
	Categories   []ProfileCategory
	// StaticPrograms are carried into the record as-is.
	StaticPrograms map[string][]string
}

// QuaidIAzam is the profile source for Quaid-i-Azam University, whose
// admissions portal publishes program announcements as linked notices
// with per-discipline tables.
func QuaidIAzam() ProfileSource {
	return ProfileSource{
		Name:          "Quaid-i-Azam University (QAU)",
		AdmissionsURL: "https://ugadmissions.qau.edu.pk/oas/app/index.aspx",
		LinkBase:      "https://qau.edu.pk",
		SourceURL:     "https://qau.edu.pk/",
		Description:   "Quaid-i-Azam University (once named Islamabad University) was established in July 1967 under the Act of National Assembly. It is a federal public sector university known for its international repute, faculty and research programs.",
		BasicInfo: map[string]string{
			"Location":    "Islamabad, Pakistan",
			"Sector":      "Public",
			DeadlineKey:   "2025-01-31",
			"Affiliation": "Higher Education Commission (HEC)",
		},
		ApplyLink:    "https://qau.edu.pk/admission-notice-for-mphil-ms-programme-spring-semester-2025/",
		LinkKeywords: []string{"mphil", "phd"},
		Categories: []ProfileCategory{
			{
				Name:     "MPhilPrograms",
				Keywords: []string{"mphil", "ms"},
				Fallback: []string{
					"Biochemistry", "Bioinformatics", "Biotechnology", "Environmental Sciences",
					"Microbiology", "Plant Sciences", "Zoology", "Chemistry", "Computer Science",
					"Earth Sciences", "Electronics", "Mathematics", "Physics", "Statistics",
					"Anthropology", "Defense & Strategic Studies", "Economics", "History",
					"International Relations", "Pakistan Studies", "Management Sciences",
				},
			},
			{
				Name:      "PhDPrograms",
				Keywords:  []string{"phd"},
				Secondary: true,
				Fallback: []string{
					"Biochemistry", "Biotechnology", "Environmental Sciences", "Microbiology",
					"Plant Sciences", "Zoology", "Chemistry", "Computer Science", "Earth Sciences",
					"Electronics", "Mathematics", "Physics", "Statistics", "Economics",
					"History", "International Relations",
				},
			},
		},
		StaticPrograms: map[string][]string{
			"BSPrograms": {
				"BS Computer Science",
				"BS Mathematics",
				"BS Physics",
				"BS Chemistry",
				"BS Statistics",
				"BS Economics",
				"BS Accounting & Finance",
			},
		},
	}
}

type announcementLink struct {
	url   string
	title string
}

// RunProfileScrape scrapes the configured profile source and upserts
// its record keyed by name. Per-announcement failures are logged and
// skipped, and categories the portal yields nothing for fall back to
// their seeded program lists.
func (s *Service) RunProfileScrape(ctx context.Context) (UniversityRecord, error) {
	ctx, span := tracer.Start(ctx, "RunProfileScrape")
	defer span.End()
	span.SetAttributes(attribute.String("source", s.profile.Name))

	src := s.profile
	if src.AdmissionsURL == "" {
		return UniversityRecord{}, fmt.Errorf("no profile source configured")
	}

	rec := UniversityRecord{
		Name:          src.Name,
		BasicInfo:     map[string]string{},
		Description:   src.Description,
		Programs:      map[string][]string{},
		ApplyLink:     src.ApplyLink,
		SourceURL:     src.SourceURL,
		AdmissionOpen: true,
	}
	for k, v := range src.BasicInfo {
		rec.BasicInfo[k] = v
	}
	if due, ok := rec.Deadline(); ok {
		rec.AdmissionOpen = deadline.IsOpen(due, timezone.Now())
	}

	doc, err := s.fetchPage(ctx, src.AdmissionsURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch admissions page")
		return UniversityRecord{}, fmt.Errorf("fetching admissions page: %w", err)
	}

	links := announcementLinks(ctx, doc, src)
	slog.InfoContext(ctx, "found announcement links",
		"source", src.Name, "count", len(links))

	found := map[string][]string{}
	for _, link := range links {
		err := s.processAnnouncement(ctx, src, link, &rec, found)
		if err != nil {
			slog.ErrorContext(ctx, "failed to process announcement page",
				"url", link.url, "err", err)
		}
	}

	for _, cat := range src.Categories {
		programs := found[cat.Name]
		if len(programs) == 0 {
			programs = cat.Fallback
		}
		if len(programs) > 0 {
			rec.Programs[cat.Name] = dedupeSorted(programs)
		}
	}
	for category, programs := range src.StaticPrograms {
		rec.Programs[category] = programs
	}

	id, err := s.reconcileByName(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist record")
		return UniversityRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

// announcementLinks selects the admission announcement anchors off the
// portal page by keyword, resolving their hrefs against the link base.
func announcementLinks(ctx context.Context, doc *goquery.Document, src ProfileSource) []announcementLink {
	base, err := url.Parse(src.LinkBase)
	if err != nil {
		return nil
	}

	var links []announcementLink
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a"), base) {
		haystack := strings.ToLower(anchor.Href) + " " + strings.ToLower(anchor.Name)

		matched := false
		for _, keyword := range src.LinkKeywords {
			if strings.Contains(haystack, keyword) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		links = append(links, announcementLink{
			url:   anchor.Href,
			title: anchor.Name,
		})
	}
	return links
}

// processAnnouncement fetches one announcement page, harvesting its
// discipline tables into the matching category, the earliest date in
// its prose as the deadline, and its URL as the category apply link.
func (s *Service) processAnnouncement(ctx context.Context, src ProfileSource, link announcementLink, rec *UniversityRecord, found map[string][]string) error {
	doc, err := s.fetchPage(ctx, link.url)
	if err != nil {
		return err
	}

	var category *ProfileCategory
	title := strings.ToLower(link.title)
	for i := range src.Categories {
		for _, keyword := range src.Categories[i].Keywords {
			if strings.Contains(title, keyword) {
				category = &src.Categories[i]
				break
			}
		}
		if category != nil {
			break
		}
	}

	if category != nil {
		doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}
			discipline := htmlutil.CleanText(cells.Eq(0).Text())
			if discipline == "" || discipline == "S.#" || isDigits(discipline) {
				return
			}
			discipline = textutil.CleanProgramName(discipline)
			found[category.Name] = append(found[category.Name], discipline)
		})

		linkURL := strings.ToLower(link.url)
		for _, keyword := range category.Keywords {
			if !strings.Contains(linkURL, keyword) {
				continue
			}
			if category.Secondary {
				rec.PhdApplyLink = link.url
			} else {
				rec.ApplyLink = link.url
			}
			break
		}
	}

	// dates inside the discipline tables are schedules, not deadlines
	doc.Find("table").Remove()
	dates := deadline.FindDates(doc.Text())
	if earliest, ok := deadline.Earliest(dates); ok {
		rec.BasicInfo[DeadlineKey] = earliest.Format("2006-01-02")
		rec.AdmissionOpen = deadline.IsOpen(earliest, timezone.Now())
		slog.InfoContext(ctx, "updated deadline from announcement",
			"deadline", rec.BasicInfo[DeadlineKey],
			"admission_open", rec.AdmissionOpen)
	}

	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func dedupeSorted(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
