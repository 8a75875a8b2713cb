// Package main provides the bybot command: the polling worker, the one-shot
// analyze and fill commands driven by the workflow engine, and the review API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:   "bybot",
	Short: "Promissory note worker for crear_coop procesos",
	Long: `bybot extracts loan data from account statements and annexes with Gemini,
and fills promissory notes once a reviewer has validated the extracted data.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a YAML or TOML settings file (environment variables override it)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
