package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bybot/pagare-worker/internal/db"
	"github.com/bybot/pagare-worker/internal/server"
)

// execute runs the root command with args and returns what it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret-for-tests")

	out, err := execute(t, "token", "--subject", "revisor", "--ttl", "1h")
	require.NoError(t, err)

	svc, err := server.NewJWTService("s3cret-for-tests", time.Hour)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "revisor", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "--subject", "revisor")
	assert.Error(t, err)
}

func TestMigrateAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bybot.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_NAME", dbPath)

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	ctx := context.Background()
	store, err := db.Connect(ctx, "sqlite", dbPath)
	require.NoError(t, err)
	_, err = store.CreateProceso(ctx, db.NewProceso{Codigo: "PRC-001"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	output := filepath.Join(dir, "procesos.xlsx")
	out, err := execute(t, "export", "--estado", "creado", "--output", output)
	require.NoError(t, err)
	assert.Equal(t, output, strings.TrimSpace(out))

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	code, err := f.GetCellValue("Procesos", "B2")
	require.NoError(t, err)
	assert.Equal(t, "PRC-001", code)

	_, err = execute(t, "export", "--estado", "archivado", "--output", output)
	assert.Error(t, err)
}
