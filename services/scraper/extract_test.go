package scraper

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const detailPageFixture = `
<html>
<body>
	<h1 class="other text-primary heading">Alpha University Admissions Open</h1>
	<table class="min-w-full stuff">
		<tr><td>Location</td><td>Lahore, Pakistan</td></tr>
		<tr><td>Sector</td><td>Private</td></tr>
		<tr><td>Deadline to Apply</td><td>15-01-2099</td></tr>
		<tr><td>only one cell</td></tr>
		<tr><td>a</td><td>b</td><td>c</td></tr>
	</table>
	<div class="University_Description">
		<h1>A fine institution in Lahore.</h1>
	</div>
	<div class="University_Programs">
		<div class="BS_Programs">
			<h1 class="font-bold underline">BS Programs</h1>
			<div class="pl-2 flex flex-col gap-1">
				<h1>1. Computer Science</h1>
				<h1>2. Physics</h1>
				<h1></h1>
			</div>
		</div>
		<div class="BS_Programs">
			<h1 class="font-bold underline">Empty Category</h1>
		</div>
	</div>
	<div class="HOW_TO_APPLY?">
		<a href="https://apply.alpha.edu.pk">Apply here</a>
	</div>
</body>
</html>`

func testRules() ExtractionRules {
	return ExtractionRules{
		Name: FieldSelectors{
			`h1[class='exact-that-never-matches']`,
			`h1[class*='text-primary']`,
		},
		InfoTable: FieldSelectors{
			`table[class*='min-w-full']`,
		},
		Description:        `div.University_Description`,
		DescriptionHeading: `h1`,
		ProgramsSection:    `div.University_Programs`,
		ProgramCategory:    `div.BS_Programs`,
		CategoryTitle:      `h1[class*='font-bold'][class*='underline']`,
		ProgramList:        `div[class='pl-2 flex flex-col gap-1']`,
		ProgramItem:        `h1`,
		ApplySection:       `div[class='HOW_TO_APPLY?']`,
	}
}

func TestExtract(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detailPageFixture))
	require.NoError(t, err)

	rec := Extract(context.Background(), doc, testRules(), "https://example.com/university/alpha")

	require.Equal(t, "Alpha University", rec.Name)
	require.Equal(t, "https://example.com/university/alpha", rec.SourceURL)

	require.Equal(t, map[string]string{
		"Location":          "Lahore, Pakistan",
		"Sector":            "Private",
		"Deadline to Apply": "15-01-2099",
	}, rec.BasicInfo)

	require.Equal(t, "A fine institution in Lahore.", rec.Description)

	require.Equal(t, map[string][]string{
		"BS Programs": {"Computer Science", "Physics"},
	}, rec.Programs)

	require.Equal(t, "https://apply.alpha.edu.pk", rec.ApplyLink)

	// deadline far in the future
	require.True(t, rec.AdmissionOpen)
}

func TestExtractPastDeadlineClosesAdmission(t *testing.T) {
	fixture := strings.Replace(detailPageFixture, "15-01-2099", "15-01-2001", 1)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)

	rec := Extract(context.Background(), doc, testRules(), "https://example.com/university/alpha")
	require.False(t, rec.AdmissionOpen)
}

func TestExtractMissingFieldsStaysBestEffort(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>nothing here</p></body></html>`))
	require.NoError(t, err)

	rec := Extract(context.Background(), doc, testRules(), "https://example.com/university/empty")

	require.Empty(t, rec.Name)
	require.Empty(t, rec.BasicInfo)
	require.Empty(t, rec.Programs)
	require.Empty(t, rec.ApplyLink)
	// unknown deadline defaults to open
	require.True(t, rec.AdmissionOpen)
}

func TestExtractApplyLinkFallback(t *testing.T) {
	fixture := `
<html><body>
	<h1 class="text-primary">Beta University</h1>
	<a href="/about">About</a>
	<a href="https://portal.beta.edu.pk/admissions">Apply Now</a>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)

	rec := Extract(context.Background(), doc, testRules(), "https://example.com/university/beta")
	require.Equal(t, "https://portal.beta.edu.pk/admissions", rec.ApplyLink)
}
