package cmd

import (
	"os"

	"uniadmit-backend/services/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var profileOnly bool

func init() {
	scrapeCmd.Flags().BoolVar(&profileOnly, "profile", false,
		"scrape only the profile source instead of the full listing")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Runs a scrape and prints the persisted records.",
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore, err := openStore()
		if err != nil {
			fatal(err)
		}
		defer closeStore()

		svc, err := scraper.NewService(scraper.Options{
			Store:   store,
			Listing: scraper.PakEduCareers(),
			Profile: scraper.QuaidIAzam(),
		})
		if err != nil {
			fatal(err)
		}
		defer svc.Close()

		var records []scraper.UniversityRecord
		if profileOnly {
			rec, err := svc.RunProfileScrape(cmd.Context())
			if err != nil {
				fatal(err)
			}
			records = []scraper.UniversityRecord{rec}
		} else {
			records, err = svc.RunScrape(cmd.Context())
			if err != nil {
				fatal(err)
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Deadline", "Open", "Programs"})

		for _, rec := range records {
			programs := 0
			for _, list := range rec.Programs {
				programs += len(list)
			}
			t.AppendRow(table.Row{
				rec.ID,
				rec.Name,
				rec.BasicInfo[scraper.DeadlineKey],
				rec.AdmissionOpen,
				programs,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
