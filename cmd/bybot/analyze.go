package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bybot/pagare-worker/internal/callback"
	"github.com/bybot/pagare-worker/internal/fetch"
	"github.com/bybot/pagare-worker/internal/fileserver"
	"github.com/bybot/pagare-worker/internal/processor"
	"github.com/bybot/pagare-worker/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the documents of one proceso and report the extracted data",
	Long: `Runs the extraction oracle over the account statement and annexes of one proceso.

Documents come either from --archivos, a JSON list of {url, tipo, nombre, anexo_id}
(entries without url are downloaded from the file server), or from --archivos_locales,
comma-separated paths classified by file name. The result is printed as JSON and
posted to the webhook as analysis_complete or analysis_error unless --no_callback.`,
	RunE: runAnalyze,
}

var analyzeOpts analyzeOptions

func init() {
	analyzeCmd.Flags().Int64Var(&analyzeOpts.ProcesoID, "proceso_id", 0, "Proceso ID (required)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.Archivos, "archivos", "", `JSON list of documents, e.g. [{"url":"...","tipo":"estado_cuenta"}]`)
	analyzeCmd.Flags().StringVar(&analyzeOpts.Locales, "archivos_locales", "", "Comma-separated local document paths")
	analyzeCmd.Flags().StringVar(&analyzeOpts.Output, "output", "", "Also write the JSON result to this file")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.NoCallback, "no_callback", false, "Do not post the result to the webhook")
	_ = analyzeCmd.MarkFlagRequired("proceso_id")
	analyzeCmd.MarkFlagsMutuallyExclusive("archivos", "archivos_locales")
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOptions struct {
	ProcesoID  int64
	Archivos   string
	Locales    string
	Output     string
	NoCallback bool
}

// documentAnalyzer is the part of the extraction oracle the command uses
type documentAnalyzer interface {
	AnalyzeStatement(ctx context.Context, path string) (*types.EstadoCuenta, types.TokenUsage, error)
	AnalyzeAnexos(ctx context.Context, paths []string) (*types.AnexosResult, types.TokenUsage, error)
}

type analyzeDeps struct {
	Oracle   documentAnalyzer
	Files    processor.Files
	HTTP     *fetch.Client
	Callback callback.Sender
	TempDir  string
	Logger   *slog.Logger
}

// archivoRef is one entry of --archivos
type archivoRef struct {
	URL     string `json:"url"`
	Tipo    string `json:"tipo"`
	Nombre  string `json:"nombre"`
	AnexoID int64  `json:"anexo_id"`
}

// documentSet groups documents by role
type documentSet struct {
	Statements []string
	Anexos     []string
	Pagares    []string
}

func (d documentSet) total() int {
	return len(d.Statements) + len(d.Anexos) + len(d.Pagares)
}

// analysisInputs returns the statement to analyze and the annexes; extra statements join the annexes
func (d documentSet) analysisInputs() (string, []string) {
	if len(d.Statements) == 0 {
		return "", d.Anexos
	}
	anexos := append(append([]string{}, d.Anexos...), d.Statements[1:]...)
	return d.Statements[0], anexos
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	deps := analyzeDeps{
		Files:    a.fileServer(),
		HTTP:     fetch.New(&fetch.Options{Timeout: a.cfg.FileServer.Timeout}),
		Callback: a.callbacks(analyzeOpts.NoCallback),
		TempDir:  a.cfg.FileServer.TempDir,
		Logger:   a.logger,
	}
	oracle, closeOracle, err := a.oracle(ctx)
	if err != nil {
		res := failure(analyzeOpts.ProcesoID, err)
		_ = printResult(cmd.OutOrStdout(), res)
		notifyError(ctx, deps.Callback, analyzeOpts.ProcesoID, callback.ActionAnalysisError, err, a.logger)
		return err
	}
	defer closeOracle()
	deps.Oracle = oracle

	return executeAnalyze(ctx, analyzeOpts, deps, cmd.OutOrStdout())
}

// executeAnalyze prints the result and returns an error when the command must exit 1
func executeAnalyze(ctx context.Context, opts analyzeOptions, deps analyzeDeps, out io.Writer) error {
	logger := deps.Logger.With("proceso_id", opts.ProcesoID)
	logger.Info("starting analysis")

	res, err := analyze(ctx, opts, deps, logger)
	if err == nil {
		err = deps.Callback.Send(ctx, opts.ProcesoID, callback.ActionAnalysisComplete, map[string]any{
			"datos":  res.Datos,
			"modelo": res.Metadata.Tokens.Model,
			"tokens": res.Metadata.Tokens.Total,
		})
	}
	if err != nil {
		logger.Error("analysis failed", "error", err)
		res = failure(opts.ProcesoID, err)
		notifyError(ctx, deps.Callback, opts.ProcesoID, callback.ActionAnalysisError, err, logger)
	}

	if perr := emit(out, opts.Output, res); perr != nil && err == nil {
		err = perr
	}
	if err == nil {
		logger.Info("analysis completed")
	}
	return err
}

func analyze(ctx context.Context, opts analyzeOptions, deps analyzeDeps, logger *slog.Logger) (commandResult, error) {
	var (
		docs    documentSet
		cleanup []string
		err     error
	)
	defer func() {
		for _, p := range cleanup {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("failed to remove temporary file", "path", p, "error", rmErr)
			}
		}
	}()

	switch {
	case opts.Archivos != "":
		docs, cleanup, err = fetchDocuments(ctx, opts.ProcesoID, opts.Archivos, deps, logger)
		if err != nil {
			return commandResult{}, err
		}
	case opts.Locales != "":
		docs = classifyLocal(opts.Locales, logger)
	default:
		return commandResult{}, errors.New("either --archivos or --archivos_locales is required")
	}
	if docs.total() == 0 {
		return commandResult{}, &types.DataError{Field: "archivos", Message: "no documents found to analyze"}
	}
	logger.Info("documents loaded",
		"estado_cuenta", len(docs.Statements),
		"anexos", len(docs.Anexos),
		"pagare", len(docs.Pagares),
	)

	statement, anexos := docs.analysisInputs()
	if statement == "" && len(anexos) == 0 {
		return commandResult{}, &types.DataError{Field: "archivos", Message: "no account statement or annex among the documents"}
	}

	var (
		ec        *types.EstadoCuenta
		ax        *types.AnexosResult
		usage     types.TokenUsage
		processed int
		failures  []error
	)
	if statement != "" {
		stmt, u, err := deps.Oracle.AnalyzeStatement(ctx, statement)
		usage = usage.Add(u)
		if err != nil {
			logger.Error("statement analysis failed", "error", err)
			failures = append(failures, err)
		} else {
			ec = stmt
			processed++
		}
	}
	if len(anexos) > 0 {
		res, u, err := deps.Oracle.AnalyzeAnexos(ctx, anexos)
		usage = usage.Add(u)
		if err != nil {
			logger.Error("annex analysis failed", "error", err)
			failures = append(failures, err)
		} else {
			ax = res
			processed += len(anexos)
		}
	}
	if processed == 0 {
		return commandResult{}, errors.Join(failures...)
	}

	datos := types.Merge(ec, ax)
	return commandResult{
		Success:   true,
		ProcesoID: opts.ProcesoID,
		Datos:     &datos,
		Metadata: &analysisMetadata{
			FechaAnalisis:      clock().Format("2006-01-02T15:04:05"),
			ArchivosProcesados: processed,
			Tokens:             usage,
		},
	}, nil
}

// fetchDocuments downloads every --archivos entry; failed entries are skipped
func fetchDocuments(ctx context.Context, procesoID int64, raw string, deps analyzeDeps, logger *slog.Logger) (documentSet, []string, error) {
	var refs []archivoRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return documentSet{}, nil, &types.DataError{Field: "archivos", Message: "invalid JSON list", Cause: err}
	}

	var (
		docs       documentSet
		downloaded []string
	)
	for i, ref := range refs {
		tipo := strings.ToLower(strings.TrimSpace(ref.Tipo))
		if tipo == "" {
			tipo = types.FileAnexo
		}

		var (
			path string
			err  error
		)
		if ref.URL != "" {
			path, err = downloadURL(ctx, deps, ref, tipo)
		} else {
			var d *fileserver.Download
			d, err = deps.Files.Download(ctx, procesoID, fileKind(tipo), ref.AnexoID)
			if d != nil {
				path = d.Path
			}
		}
		if err != nil {
			logger.Error("failed to download document", "index", i, "tipo", tipo, "nombre", ref.Nombre, "error", err)
			continue
		}
		downloaded = append(downloaded, path)

		switch fileKind(tipo) {
		case types.FileEstadoCuenta:
			docs.Statements = append(docs.Statements, path)
		case types.FilePagare:
			docs.Pagares = append(docs.Pagares, path)
		default:
			docs.Anexos = append(docs.Anexos, path)
		}
	}
	return docs, downloaded, nil
}

// fileKind maps the workflow's document types onto file server kinds
func fileKind(tipo string) string {
	switch tipo {
	case types.FileEstadoCuenta, "estadocuenta":
		return types.FileEstadoCuenta
	case types.FilePagare, "pagare_original":
		return types.FilePagare
	default:
		return types.FileAnexo
	}
}

func downloadURL(ctx context.Context, deps analyzeDeps, ref archivoRef, tipo string) (string, error) {
	name := fileserver.SanitizeFileName(ref.Nombre)
	if name == "" {
		name = "documento.pdf"
	}
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".pdf"
	}

	f, err := os.CreateTemp(deps.TempDir, fmt.Sprintf("bybot_%s_*%s", tipo, ext))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := deps.HTTP.GetTo(ctx, ref.URL, f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// classifyLocal sorts local paths by file name: statements mention "estado" or
// "cuenta", promissory notes mention "pagare", everything else is an annex.
// Missing files are skipped.
func classifyLocal(paths string, logger *slog.Logger) documentSet {
	var docs documentSet
	for _, p := range strings.Split(paths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			logger.Warn("skipping missing document", "path", p, "error", err)
			continue
		}
		name := strings.ToLower(filepath.Base(p))
		switch {
		case strings.Contains(name, "estado") || strings.Contains(name, "cuenta"):
			docs.Statements = append(docs.Statements, p)
		case strings.Contains(name, "pagare"):
			docs.Pagares = append(docs.Pagares, p)
		default:
			docs.Anexos = append(docs.Anexos, p)
		}
	}
	return docs
}

// emit prints the result and optionally writes it to a file
func emit(out io.Writer, path string, res commandResult) error {
	if err := printResult(out, res); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := printResult(f, res); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// notifyError posts an error callback; its own failure is only logged
func notifyError(ctx context.Context, sender callback.Sender, procesoID int64, action string, cause error, logger *slog.Logger) {
	if err := sender.Send(context.WithoutCancel(ctx), procesoID, action, map[string]any{"error": cause.Error()}); err != nil {
		logger.Warn("failed to send error callback", "action", action, "error", err)
	}
}
