package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bybot/pagare-worker/internal/processor"
	"github.com/bybot/pagare-worker/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the procesos table and run analysis and fill phases",
	Long: `Starts the polling worker. Each poll analyzes the oldest proceso in creado and
fills the oldest proceso in informacion_ia_validada. The worker stops after
max_empty_polls consecutive polls with no successful work, unless --forever.`,
	RunE: runWorker,
}

var (
	runForever  bool
	runPhases   []string
	runTemplate string
)

func init() {
	runCmd.Flags().BoolVar(&runForever, "forever", false, "Keep polling after consecutive empty polls")
	runCmd.Flags().StringSliceVar(&runPhases, "phases", []string{string(worker.PhaseAnalysis), string(worker.PhaseFill)}, "Phases to run on each poll (analysis, fill)")
	runCmd.Flags().StringVar(&runTemplate, "template", "", "Path to a template JSON used to fill notes")
	rootCmd.AddCommand(runCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	phases, err := worker.ParsePhases(runPhases)
	if err != nil {
		return err
	}
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	oracle, closeOracle, err := a.oracle(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	engine, err := a.engine(runTemplate)
	if err != nil {
		return err
	}

	publisher, err := a.publisher()
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", "error", err)
		}
	}()

	proc := processor.New(processor.Deps{
		Store:   store,
		Files:   a.fileServer(),
		Oracle:  oracle,
		Overlay: engine,
		Events:  publisher,
	}, processor.Options{
		MaxAttempts: a.cfg.Processing.MaxAttempts,
		TempDir:     a.cfg.FileServer.TempDir,
	}, a.logger)

	w := worker.New(proc, store, worker.Options{
		PollInterval:  a.cfg.Processing.PollInterval,
		MaxEmptyPolls: a.cfg.Processing.MaxEmptyPolls,
		Forever:       runForever,
		Phases:        phases,
		StaleAfter:    a.cfg.Processing.StaleAfter,
	}, a.logger)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
