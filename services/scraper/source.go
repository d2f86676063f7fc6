package scraper

// FieldSelectors is an ordered fallback chain: selectors are tried
// until one matches, so a source can survive cosmetic markup changes.
type FieldSelectors []string

// ExtractionRules is the per-source selector configuration for detail
// pages. Sites differ only in markup, not pipeline shape, so rules are
// data rather than code.
type ExtractionRules struct {
	Name      FieldSelectors
	InfoTable FieldSelectors

	Description        string
	DescriptionHeading string

	ProgramsSection string
	ProgramCategory string
	CategoryTitle   string
	ProgramList     string
	ProgramItem     string

	ApplySection string
}

// ListingSource describes a site that publishes one listing page
// linking out to per-institution detail pages.
type ListingSource struct {
	Name string
	// BaseURL is both the listing page and the origin relative hrefs
	// resolve against.
	BaseURL string
	// DetailPathPrefix identifies detail-page links on the listing.
	DetailPathPrefix string
	// Rendered marks listings that only materialize their links after
	// client-side scripts run, requiring a browser for discovery.
	Rendered bool

	Rules ExtractionRules
}

// PakEduCareers is the bulk listing source: a JS-rendered index of
// Pakistani universities with tailwind-styled detail pages.
func PakEduCareers() ListingSource {
	return ListingSource{
		Name:             "pakeducareers",
		BaseURL:          "https://pakeducareers.com",
		DetailPathPrefix: "/university/",
		Rendered:         true,
		Rules: ExtractionRules{
			Name: FieldSelectors{
				`h1[class='max-sm:text-base sm:text-2xl md:text-3xl lg:text-4xl text-center font-bold text-primary']`,
				`h1[class*='text-primary']`,
			},
			InfoTable: FieldSelectors{
				`table[class='min-w-full border-collapse border border-primary text-primary font-semibold']`,
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
		},
	}
}
