package cmd

import (
	"fmt"

	"uniadmit-backend/services/scraper"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recomputeCmd)
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Re-derives the admission-open flag for every stored university.",
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore, err := openStore()
		if err != nil {
			fatal(err)
		}
		defer closeStore()

		svc, err := scraper.NewService(scraper.Options{Store: store})
		if err != nil {
			fatal(err)
		}
		defer svc.Close()

		summary, err := svc.RecomputeAdmissionStatus(cmd.Context())
		if err != nil {
			fatal(err)
		}
		fmt.Printf("updated: %d\nskipped: %d\nerrored: %d\n",
			summary.Updated, summary.Skipped, summary.Errored)
	},
}
