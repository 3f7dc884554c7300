package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "")
	t.Setenv("MAX_CONCURRENCY", "")

	cfg := FromEnv()
	assert.Equal(t, SourceFile, cfg.DatasetSource)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.True(t, cfg.PanelCacheOn)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "SQLite")
	t.Setenv("MAX_CONCURRENCY", "7")
	t.Setenv("DEBUG", "true")

	cfg := FromEnv()
	assert.Equal(t, SourceSQLite, cfg.DatasetSource)
	assert.Equal(t, 7, cfg.MaxConcurrency)
	assert.True(t, cfg.Debug)
}

func TestFromEnvBadNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_RETRIES", "three")
	t.Setenv("PANEL_CACHE", "maybe")

	cfg := FromEnv()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.PanelCacheOn)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5432", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "rental", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=rental sslmode=disable", cfg.DSN())
}
