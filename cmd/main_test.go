package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/config"
)

func TestOpenGatewayCreatesSQLiteDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "mise.db")

	gw, err := openGateway(config.StorageConfig{Driver: config.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer gw.Close()

	info, err := os.Stat(filepath.Dir(dsn))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenGatewayCreatesFileDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{
		Driver:        config.DriverFile,
		InventoryPath: filepath.Join(dir, "inv", "inventory.json"),
		HistoryPath:   filepath.Join(dir, "hist", "history.json"),
	}

	gw, err := openGateway(cfg)
	require.NoError(t, err)
	defer gw.Close()

	for _, p := range []string{cfg.InventoryPath, cfg.HistoryPath} {
		info, err := os.Stat(filepath.Dir(p))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
