package cmd

import (
	"fmt"
	"os"

	"uniadmit-backend/docstore/cached"
	"uniadmit-backend/docstore/sqlitestore"

	"github.com/spf13/cobra"
)

var databasePath string

var rootCmd = &cobra.Command{
	Use:   "uniadmit",
	Short: "uniadmit is a CLI interface for the university admissions scraping pipeline.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&databasePath, "db", "uniadmit.db", "path to the sqlite database")
}

func openStore() (*cached.Store, func(), error) {
	db, err := sqlitestore.Open(databasePath)
	if err != nil {
		return nil, nil, err
	}
	return cached.New(db), func() { db.Close() }, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
