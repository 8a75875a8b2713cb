package report

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bybot/pagare-worker/internal/db"
	"github.com/bybot/pagare-worker/internal/logging"
	"github.com/bybot/pagare-worker/internal/types"
)

func ptr[T any](v T) *T { return &v }

func newStore(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()
	store, err := db.Connect(ctx, "sqlite", filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.CreateProceso(ctx, db.NewProceso{Codigo: "PAG-0001"})
	require.NoError(t, err)

	analyzed, err := store.CreateProceso(ctx, db.NewProceso{Codigo: "PAG-0002"})
	require.NoError(t, err)
	require.NoError(t, store.Claim(ctx, analyzed, types.StateCreated, types.StateAnalyzing))
	require.NoError(t, store.SaveAnalysis(ctx, analyzed, types.Datos{
		EstadoCuenta: types.EstadoCuenta{
			SaldoCapital:             ptr(1500000.0),
			TasaInteresEfectivaAnual: ptr(24.5),
			FechaCausacion:           ptr("2026-09-30"),
		},
		Deudor: &types.Persona{
			Nombres:              ptr("Ana"),
			Apellidos:            ptr("Pérez"),
			TipoIdentificacion:   ptr("CC"),
			NumeroIdentificacion: ptr("1020304050"),
		},
	}, types.TokenUsage{Input: 100, Output: 20, Total: 120}))
	require.NoError(t, store.SaveValidated(ctx, analyzed, types.Datos{
		EstadoCuenta: types.EstadoCuenta{SaldoCapital: ptr(2500000.0), TasaInteresEfectivaAnual: ptr(24.5)},
		Deudor:       &types.Persona{Nombres: ptr("Ana"), Apellidos: ptr("Pérez")},
		Codeudor:     &types.Persona{Nombres: ptr("Luis")},
	}))

	data, err := New(store, logging.Discard()).Export(ctx, "")
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])

	first := rows[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "PAG-0001", first[1])
	assert.Equal(t, "creado", first[2])
	assert.Equal(t, "0", first[3])
	assert.Equal(t, "No", first[14])

	second := rows[2]
	assert.Equal(t, "PAG-0002", second[1])
	assert.Equal(t, "analizado_con_ia", second[2])
	assert.Equal(t, "2500000", second[6], "validated figures win")
	assert.Equal(t, "", second[7])
	assert.Equal(t, "24.5", second[9])
	assert.Equal(t, "", second[10])
	assert.Equal(t, "Ana Pérez", second[11])
	assert.Equal(t, "", second[12])
	assert.Equal(t, "Luis", second[13])
	assert.Equal(t, "Sí", second[14])
	assert.Equal(t, "120", second[15])
}

func TestExport_FilterByState(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.CreateProceso(ctx, db.NewProceso{Codigo: "PAG-0001"})
	require.NoError(t, err)

	data, err := New(store, nil).Export(ctx, types.StateFilled)
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 1)
	assert.Equal(t, Headers, rows[0])
}

type failingStore struct{ err error }

func (s failingStore) ListProcesos(context.Context, types.State) ([]types.Proceso, error) {
	return nil, s.err
}

func (s failingStore) GetExtraction(context.Context, int64) (*types.ExtractionRecord, error) {
	return nil, s.err
}

func TestExport_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := New(failingStore{err: boom}, logging.Discard()).Export(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}

func TestIdentification(t *testing.T) {
	assert.Equal(t, "", identification(nil))
	assert.Equal(t, "123", identification(&types.Persona{NumeroIdentificacion: ptr("123")}))
	assert.Equal(t, "CE 123", identification(&types.Persona{TipoIdentificacion: ptr("CE"), NumeroIdentificacion: ptr("123")}))
}
