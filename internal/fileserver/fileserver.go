// Package fileserver downloads proceso documents from, and uploads results to,
// the admin file server.
package fileserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bybot/pagare-worker/internal/fetch"
)

const (
	downloadPath = "/modules/crear_coop/api/serve_file_for_bot.php"
	uploadPath   = "/modules/crear_coop/api/upload_file_from_bot.php"

	tokenHeader    = "X-API-Token"
	fileNameHeader = "X-File-Name"
)

// Options configures the client
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	TempDir string // defaults to os.TempDir()
}

// Download is a document saved to a local temporary file
type Download struct {
	Path     string
	FileName string
	Size     int64
}

// UploadResult is the server's answer to an upload
type UploadResult struct {
	Success     bool   `json:"success"`
	RutaArchivo string `json:"ruta_archivo"`
	Message     string `json:"message"`
}

// Client talks to the file server
type Client struct {
	baseURL string
	token   string
	tempDir string
	http    *fetch.Client
	logger  *slog.Logger
}

// New creates a client. The base URL is normalized to end in /admin.
func New(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Client{
		baseURL: NormalizeBaseURL(opts.BaseURL),
		token:   opts.Token,
		tempDir: tempDir,
		http: fetch.New(&fetch.Options{
			Timeout:   opts.Timeout,
			UserAgent: fetch.DefaultUserAgent,
			Headers:   map[string]string{tokenHeader: opts.Token},
		}),
		logger: logger,
	}
}

// NormalizeBaseURL trims trailing slashes and appends /admin when missing
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if !strings.HasSuffix(base, "/admin") {
		base += "/admin"
	}
	return base
}

// DownloadURL builds the download URL for a document. anexoID is only sent for annexes.
func (c *Client) DownloadURL(procesoID int64, tipo string, anexoID int64) string {
	q := url.Values{}
	q.Set("proceso_id", strconv.FormatInt(procesoID, 10))
	q.Set("tipo", tipo)
	if anexoID > 0 {
		q.Set("anexo_id", strconv.FormatInt(anexoID, 10))
	}
	return c.baseURL + downloadPath + "?" + q.Encode()
}

// Download fetches a document of the given tipo into a temporary file. The
// caller owns the returned file and must remove it.
func (c *Client) Download(ctx context.Context, procesoID int64, tipo string, anexoID int64) (*Download, error) {
	target := c.DownloadURL(procesoID, tipo, anexoID)

	tmp, err := os.CreateTemp(c.tempDir, fmt.Sprintf("bybot_%d_%s_*.part", procesoID, tipo))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpPath)
		}
	}()

	result, err := c.http.GetTo(ctx, target, tmp)
	closeErr := tmp.Close()
	if err != nil {
		c.logFailure("download", procesoID, tipo, err)
		return nil, fmt.Errorf("failed to download %s for proceso %d: %w", tipo, procesoID, err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", closeErr)
	}
	if result.Size == 0 {
		err := &fetch.Error{URL: target, Kind: fetch.KindEmpty, StatusCode: result.StatusCode, Message: "downloaded file is empty"}
		return nil, fmt.Errorf("failed to download %s for proceso %d: %w", tipo, procesoID, err)
	}

	name := SanitizeFileName(result.Header.Get(fileNameHeader))
	if name == "" {
		name = tipo + ".pdf"
	}
	finalPath := filepath.Join(c.tempDir, fmt.Sprintf("bybot_%d_%s_%s_%s", procesoID, tipo, uuid.NewString()[:8], name))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("failed to move downloaded file: %w", err)
	}
	keep = true

	c.logger.Info("file downloaded",
		"proceso_id", procesoID,
		"tipo", tipo,
		"file", name,
		"bytes", result.Size,
	)
	return &Download{Path: finalPath, FileName: name, Size: result.Size}, nil
}

// Upload sends a local file to the server under the given tipo
func (c *Client) Upload(ctx context.Context, procesoID int64, tipo, path string) (*UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload file: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("refusing to upload empty file %s", path)
	}

	target := c.baseURL + uploadPath
	result, err := c.http.PostFile(ctx, target, map[string]string{
		"proceso_id": strconv.FormatInt(procesoID, 10),
		"tipo":       tipo,
	}, "archivo", path)
	if err != nil {
		c.logFailure("upload", procesoID, tipo, err)
		return nil, fmt.Errorf("failed to upload %s for proceso %d: %w", tipo, procesoID, err)
	}

	var out UploadResult
	if err := fetch.DecodeJSON(result, &out); err != nil {
		return nil, fmt.Errorf("failed to upload %s for proceso %d: %w", tipo, procesoID, err)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "server reported failure"
		}
		err := &fetch.Error{URL: target, Kind: fetch.KindRejected, StatusCode: result.StatusCode, Message: msg}
		return nil, fmt.Errorf("failed to upload %s for proceso %d: %w", tipo, procesoID, err)
	}

	c.logger.Info("file uploaded",
		"proceso_id", procesoID,
		"tipo", tipo,
		"ruta_archivo", out.RutaArchivo,
	)
	return &out, nil
}

// logFailure adds token diagnostics to authentication failures
func (c *Client) logFailure(op string, procesoID int64, tipo string, err error) {
	attrs := []any{"op", op, "proceso_id", procesoID, "tipo", tipo, "error", err}

	var fe *fetch.Error
	if errors.As(err, &fe) && (fe.Kind == fetch.KindUnauthorized || fe.Kind == fetch.KindForbidden) {
		attrs = append(attrs,
			"status", fe.StatusCode,
			"token_length", len(c.token),
			"token_prefix", tokenPrefix(c.token),
		)
	}
	c.logger.Error("file server call failed", attrs...)
}

func tokenPrefix(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..."
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFileName keeps the base name and replaces anything outside [A-Za-z0-9._-]
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
}
