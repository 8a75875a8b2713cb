package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bybot/pagare-worker/internal/report"
	"github.com/bybot/pagare-worker/internal/types"
)

var (
	exportEstado string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export procesos and their extracted figures to an XLSX workbook",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportEstado, "estado", "", "Only export procesos in this state")
	exportCmd.Flags().StringVar(&exportOutput, "output", "procesos.xlsx", "Path of the workbook to write")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	var state types.State
	if exportEstado != "" {
		parsed, err := types.ParseState(exportEstado)
		if err != nil {
			return err
		}
		state = parsed
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	store, err := a.openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	data, err := report.New(store, a.logger).Export(cmd.Context(), state)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), exportOutput)
	return err
}
