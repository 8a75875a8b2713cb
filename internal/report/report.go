// Package report exports procesos and their extracted figures as an XLSX workbook.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bybot/pagare-worker/internal/types"
)

// SheetName is the worksheet holding one row per proceso
const SheetName = "Procesos"

// Headers are the column titles, in column order
var Headers = []string{
	"ID",
	"Código",
	"Estado",
	"Intentos análisis",
	"Fecha creación",
	"Fecha actualización",
	"Saldo capital",
	"Saldo interés",
	"Saldo mora",
	"TEA (%)",
	"Fecha causación",
	"Deudor",
	"Identificación deudor",
	"Codeudor",
	"Datos validados",
	"Tokens",
	"Pagaré llenado",
}

// Store is what the exporter reads
type Store interface {
	ListProcesos(ctx context.Context, state types.State) ([]types.Proceso, error)
	GetExtraction(ctx context.Context, procesoID int64) (*types.ExtractionRecord, error)
}

// Exporter builds XLSX workbooks from the proceso tables
type Exporter struct {
	store  Store
	logger *slog.Logger
}

// New creates an exporter
func New(store Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, logger: logger}
}

// Export returns the workbook bytes for all procesos in state, or every proceso when state is empty.
// Figures come from the validated data when present.
func (e *Exporter) Export(ctx context.Context, state types.State) ([]byte, error) {
	start := time.Now()

	procesos, err := e.store.ListProcesos(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("query procesos: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, bold)
	}

	for i, p := range procesos {
		rec, err := e.store.GetExtraction(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("load extraction for proceso %d: %w", p.ID, err)
		}
		values := row(p, rec)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row for proceso %d: %w", p.ID, err)
		}
	}

	_ = f.SetColWidth(SheetName, "B", "C", 24)
	_ = f.SetColWidth(SheetName, "E", "F", 20)
	_ = f.SetColWidth(SheetName, "G", "I", 16)
	_ = f.SetColWidth(SheetName, "L", "N", 32)
	_ = f.SetColWidth(SheetName, "Q", "Q", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export.xlsx.ok",
		slog.String("estado", string(state)),
		slog.Int("rows", len(procesos)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func row(p types.Proceso, rec *types.ExtractionRecord) []any {
	values := []any{
		p.ID,
		p.Codigo,
		string(p.Estado),
		p.IntentosAnalisis,
		p.FechaCreacion.Format("2006-01-02 15:04"),
		p.FechaActualizacion.Format("2006-01-02 15:04"),
	}

	if rec == nil {
		values = append(values, nil, nil, nil, nil, nil, nil, nil, nil, "No", nil)
	} else {
		datos := rec.Preferred()
		ec := datos.EstadoCuenta
		validated := "No"
		if rec.Validados != nil {
			validated = "Sí"
		}
		values = append(values,
			number(ec.SaldoCapital),
			number(ec.SaldoInteres),
			number(ec.SaldoMora),
			number(ec.TasaInteresEfectivaAnual),
			text(ec.FechaCausacion),
			datos.Deudor.FullName(),
			identification(datos.Deudor),
			datos.Codeudor.FullName(),
			validated,
			rec.Metadata.Total,
		)
	}

	return append(values, text(p.ArchivoPagareLlenado))
}

// number keeps missing figures as empty cells rather than zero
func number(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func text(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func identification(p *types.Persona) string {
	if !p.HasIdentification() {
		return ""
	}
	if p.TipoIdentificacion != nil && *p.TipoIdentificacion != "" {
		return *p.TipoIdentificacion + " " + *p.NumeroIdentificacion
	}
	return *p.NumeroIdentificacion
}
