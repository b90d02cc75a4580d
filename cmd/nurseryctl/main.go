// Command nurseryctl is the office tool for the forms database: schema
// migration, listing submissions, re-printing PDFs and per-form counts.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var Version = "dev"

func main() {
	// Optional: the same .env the server reads supplies DB_PATH and ORG_*.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
