package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/bybot/pagare-worker/internal/types"
)

// analysisMetadata summarizes an analyze run
type analysisMetadata struct {
	FechaAnalisis      string           `json:"fecha_analisis"`
	ArchivosProcesados int              `json:"archivos_procesados"`
	Tokens             types.TokenUsage `json:"tokens"`
}

// commandResult is printed on stdout by the one-shot commands
type commandResult struct {
	Success       bool              `json:"success"`
	ProcesoID     int64             `json:"proceso_id"`
	Datos         *types.Datos      `json:"datos,omitempty"`
	Metadata      *analysisMetadata `json:"metadata,omitempty"`
	OutputPath    string            `json:"output_path,omitempty"`
	RutaArchivo   string            `json:"ruta_archivo,omitempty"`
	ArchivoBase64 string            `json:"archivo_base64,omitempty"`
	Error         string            `json:"error,omitempty"`
	Timestamp     string            `json:"timestamp"`
}

var clock = time.Now

func failure(procesoID int64, err error) commandResult {
	return commandResult{ProcesoID: procesoID, Error: err.Error()}
}

func printResult(w io.Writer, res commandResult) error {
	res.Timestamp = clock().Format(time.RFC3339)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}
