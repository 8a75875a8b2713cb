package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bybot/pagare-worker/internal/fetch"
	"github.com/bybot/pagare-worker/internal/fileserver"
	"github.com/bybot/pagare-worker/internal/types"
)

func ptr[T any](v T) *T { return &v }

// writeFile creates a small file named name in dir and returns its path
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type sentCallback struct {
	ProcesoID int64
	Action    string
	Data      map[string]any
}

// recordingSender captures callbacks; err makes every Send fail
type recordingSender struct {
	mu   sync.Mutex
	sent []sentCallback
	err  error
}

func (s *recordingSender) Send(_ context.Context, procesoID int64, action string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentCallback{ProcesoID: procesoID, Action: action, Data: data})
	return s.err
}

func (s *recordingSender) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, c := range s.sent {
		out = append(out, c.Action)
	}
	return out
}

// fakeFiles serves downloads from dir and records uploads
type fakeFiles struct {
	dir       string
	missing   map[string]bool
	uploadErr error
	uploads   []string
	requested []string
}

func (f *fakeFiles) Download(_ context.Context, procesoID int64, tipo string, anexoID int64) (*fileserver.Download, error) {
	f.requested = append(f.requested, tipo)
	if f.missing[tipo] {
		return nil, &fetch.Error{URL: "http://files/download", Kind: fetch.KindNotFound, StatusCode: 404, Message: "file not found"}
	}
	path := filepath.Join(f.dir, "download_"+tipo+"_"+strconv.FormatInt(anexoID, 10)+".pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 "+tipo), 0o600); err != nil {
		return nil, err
	}
	return &fileserver.Download{Path: path, FileName: filepath.Base(path), Size: 10}, nil
}

func (f *fakeFiles) Upload(_ context.Context, procesoID int64, tipo, path string) (*fileserver.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, path)
	return &fileserver.UploadResult{Success: true, RutaArchivo: "uploads/pagares/" + filepath.Base(path)}, nil
}

var errOracle = errors.New("model overloaded")

// stubAnalyzer returns canned results and records the files it saw
type stubAnalyzer struct {
	statementErr error
	anexosErr    error
	statements   []string
	anexos       [][]string
}

func (s *stubAnalyzer) AnalyzeStatement(_ context.Context, path string) (*types.EstadoCuenta, types.TokenUsage, error) {
	s.statements = append(s.statements, path)
	usage := types.TokenUsage{Input: 1000, Output: 100, Total: 1100, Model: "gemini-1.5-flash"}
	if s.statementErr != nil {
		return nil, usage, s.statementErr
	}
	return &types.EstadoCuenta{SaldoCapital: ptr(2000000.0), TasaInteresEfectivaAnual: ptr(24.5)}, usage, nil
}

func (s *stubAnalyzer) AnalyzeAnexos(_ context.Context, paths []string) (*types.AnexosResult, types.TokenUsage, error) {
	s.anexos = append(s.anexos, paths)
	usage := types.TokenUsage{Input: 500, Output: 50, Total: 550, Model: "gemini-1.5-flash"}
	if s.anexosErr != nil {
		return nil, usage, s.anexosErr
	}
	return &types.AnexosResult{
		Deudor:                   &types.Persona{Nombres: ptr("Ana"), Apellidos: ptr("Pérez")},
		TasaInteresEfectivaAnual: ptr(30.0),
	}, usage, nil
}
