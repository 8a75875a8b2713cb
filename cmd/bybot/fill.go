package main

import (
	"context"
	"encoding/base64"
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
	"github.com/bybot/pagare-worker/internal/processor"
	"github.com/bybot/pagare-worker/internal/schemas"
	"github.com/bybot/pagare-worker/internal/types"
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill the promissory note of one proceso with validated data",
	Long: `Writes the given data onto the proceso's promissory note.

The note comes from --archivos_locales, from --pagare_url, or else from the file server.
The filled note is uploaded as pagare_llenado unless --no_upload, in which case the
JSON result carries it as archivo_base64. The outcome is posted to the webhook as
fill_complete or fill_error unless --no_callback.`,
	RunE: runFill,
}

var fillOpts fillOptions

func init() {
	fillCmd.Flags().Int64Var(&fillOpts.ProcesoID, "proceso_id", 0, "Proceso ID (required)")
	fillCmd.Flags().StringVar(&fillOpts.Datos, "datos", "", "Validated data as JSON")
	fillCmd.Flags().StringVar(&fillOpts.DatosFile, "datos_file", "", "Path to a JSON file with the validated data")
	fillCmd.Flags().StringVar(&fillOpts.PagareLocal, "archivos_locales", "", "Local path of the original promissory note")
	fillCmd.Flags().StringVar(&fillOpts.PagareURL, "pagare_url", "", "URL of the original promissory note")
	fillCmd.Flags().StringVar(&fillOpts.Template, "config", "", "Path to a template JSON with field positions")
	fillCmd.Flags().StringVar(&fillOpts.Output, "output", "", "Path of the filled PDF")
	fillCmd.Flags().BoolVar(&fillOpts.NoUpload, "no_upload", false, "Do not upload; return the PDF as base64")
	fillCmd.Flags().BoolVar(&fillOpts.NoCallback, "no_callback", false, "Do not post the result to the webhook")
	_ = fillCmd.MarkFlagRequired("proceso_id")
	fillCmd.MarkFlagsMutuallyExclusive("datos", "datos_file")
	fillCmd.MarkFlagsMutuallyExclusive("archivos_locales", "pagare_url")
	rootCmd.AddCommand(fillCmd)
}

type fillOptions struct {
	ProcesoID   int64
	Datos       string
	DatosFile   string
	PagareLocal string
	PagareURL   string
	Template    string
	Output      string
	NoUpload    bool
	NoCallback  bool
}

type fillDeps struct {
	Overlay  processor.Overlayer
	Files    processor.Files
	HTTP     *fetch.Client
	Callback callback.Sender
	TempDir  string
	Logger   *slog.Logger
}

func runFill(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	deps := fillDeps{
		Files:    a.fileServer(),
		HTTP:     fetch.New(&fetch.Options{Timeout: a.cfg.FileServer.Timeout}),
		Callback: a.callbacks(fillOpts.NoCallback),
		TempDir:  a.cfg.FileServer.TempDir,
		Logger:   a.logger,
	}
	engine, err := a.engine(fillOpts.Template)
	if err != nil {
		_ = printResult(cmd.OutOrStdout(), failure(fillOpts.ProcesoID, err))
		notifyError(cmd.Context(), deps.Callback, fillOpts.ProcesoID, callback.ActionFillError, err, a.logger)
		return err
	}
	deps.Overlay = engine

	return executeFill(cmd.Context(), fillOpts, deps, cmd.OutOrStdout())
}

// executeFill prints the result and returns an error when the command must exit 1
func executeFill(ctx context.Context, opts fillOptions, deps fillDeps, out io.Writer) error {
	logger := deps.Logger.With("proceso_id", opts.ProcesoID)
	logger.Info("starting fill")

	res, err := fill(ctx, opts, deps, logger)
	if err != nil {
		logger.Error("fill failed", "error", err)
		res = failure(opts.ProcesoID, err)
		notifyError(ctx, deps.Callback, opts.ProcesoID, callback.ActionFillError, err, logger)
	}

	if perr := printResult(out, res); perr != nil && err == nil {
		err = fmt.Errorf("failed to print result: %w", perr)
	}
	if err == nil {
		logger.Info("fill completed", "output_path", res.OutputPath)
	}
	return err
}

func fill(ctx context.Context, opts fillOptions, deps fillDeps, logger *slog.Logger) (commandResult, error) {
	datos, err := loadDatos(opts)
	if err != nil {
		return commandResult{}, err
	}

	pagare, downloaded, err := obtainPagare(ctx, opts, deps)
	if err != nil {
		return commandResult{}, err
	}
	if downloaded {
		defer func() {
			if rmErr := os.Remove(pagare); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("failed to remove temporary file", "path", pagare, "error", rmErr)
			}
		}()
	}

	dst := opts.Output
	if dst == "" {
		dir := deps.TempDir
		if dir == "" {
			dir = os.TempDir()
		}
		dst = filepath.Join(dir, processor.OutputName(fmt.Sprintf("proceso_%d", opts.ProcesoID)))
	}
	filled, err := deps.Overlay.Overlay(ctx, pagare, dst, datos)
	if err != nil {
		return commandResult{}, err
	}

	res := commandResult{Success: true, ProcesoID: opts.ProcesoID, OutputPath: filled}
	callbackData := map[string]any{}

	if opts.NoUpload {
		content, err := os.ReadFile(filled)
		if err != nil {
			return commandResult{}, fmt.Errorf("failed to read filled note: %w", err)
		}
		res.ArchivoBase64 = base64.StdEncoding.EncodeToString(content)
		callbackData["archivo_contenido_base64"] = res.ArchivoBase64
		callbackData["archivo_nombre"] = filepath.Base(filled)
	} else {
		up, err := deps.Files.Upload(ctx, opts.ProcesoID, types.FilePagareLlenado, filled)
		if err != nil {
			return commandResult{}, err
		}
		res.RutaArchivo = up.RutaArchivo
		callbackData["archivo_ruta"] = up.RutaArchivo
	}

	if err := deps.Callback.Send(ctx, opts.ProcesoID, callback.ActionFillComplete, callbackData); err != nil {
		return commandResult{}, err
	}
	return res, nil
}

// loadDatos reads --datos or --datos_file and checks it against the datos schema
func loadDatos(opts fillOptions) (types.Datos, error) {
	var raw []byte
	switch {
	case strings.TrimSpace(opts.Datos) != "":
		raw = []byte(opts.Datos)
	case opts.DatosFile != "":
		b, err := os.ReadFile(opts.DatosFile)
		if err != nil {
			return types.Datos{}, fmt.Errorf("failed to read datos file: %w", err)
		}
		raw = b
	default:
		return types.Datos{}, errors.New("either --datos or --datos_file is required")
	}

	if err := schemas.Validate(schemas.Datos, raw); err != nil {
		return types.Datos{}, err
	}
	var datos types.Datos
	if err := json.Unmarshal(raw, &datos); err != nil {
		return types.Datos{}, &types.DataError{Field: "datos", Message: "invalid JSON", Cause: err}
	}
	return datos, nil
}

// obtainPagare returns the note path and whether it is a temporary download
func obtainPagare(ctx context.Context, opts fillOptions, deps fillDeps) (string, bool, error) {
	switch {
	case opts.PagareLocal != "":
		path := strings.TrimSpace(strings.Split(opts.PagareLocal, ",")[0])
		if _, err := os.Stat(path); err != nil {
			return "", false, &types.DataError{Field: types.FilePagare, Message: "promissory note not found: " + path, Cause: err}
		}
		return path, false, nil
	case opts.PagareURL != "":
		path, err := downloadURL(ctx, analyzeDeps{HTTP: deps.HTTP, TempDir: deps.TempDir},
			archivoRef{URL: opts.PagareURL, Nombre: fmt.Sprintf("pagare_original_%d.pdf", opts.ProcesoID)}, types.FilePagare)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	default:
		d, err := deps.Files.Download(ctx, opts.ProcesoID, types.FilePagare, 0)
		if err != nil {
			return "", false, err
		}
		return d.Path, true, nil
	}
}
