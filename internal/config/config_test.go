package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shapegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	res, err := LoadConfig("")
	require.NoError(t, err)
	require.False(t, res.DefaultLoaded)

	cfg := res.Config
	require.Equal(t, ".", cfg.Documents.Dir)
	require.Equal(t, "localhost:8080", cfg.Server.ListenAddr)
	require.Equal(t, 10*time.Second, cfg.Server.Timeout)
	require.Equal(t, 256, cfg.Server.CacheSize)
	require.Equal(t, "shapegen", cfg.Telemetry.ServiceName)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.JSONLog)

	require.Error(t, cfg.Validate(), "schema is required")
	cfg.Schema = "schema.graphql"
	require.NoError(t, cfg.Validate())
}

func TestEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHAPEGEN_SCHEMA", "api/schema.graphql")
	t.Setenv("SHAPEGEN_DOCUMENTS_EXCLUDE", "schema.graphql,generated.graphql")
	t.Setenv("SHAPEGEN_SERVER_TIMEOUT", "3s")
	t.Setenv("SHAPEGEN_COMPILE_CONCURRENCY", "2")

	res, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "api/schema.graphql", res.Config.Schema)
	require.Equal(t, []string{"schema.graphql", "generated.graphql"}, res.Config.Documents.Exclude)
	require.Equal(t, 3*time.Second, res.Config.Server.Timeout)
	require.Equal(t, 2, res.Config.Compile.Concurrency)
}

func TestFileOverridesEnvironment(t *testing.T) {
	t.Setenv("SHAPEGEN_SCHEMA", "from-env.graphql")
	t.Setenv("DOCS_DIR", "queries")
	path := writeConfig(t, `
schema: from-file.graphql
documents:
  dir: ${DOCS_DIR}
  exclude:
    - schema.graphql
compile:
  validate: true
server:
  listen_addr: "0.0.0.0:9000"
  timeout: 30s
  cors_origins: ["*"]
telemetry:
  otlp_endpoint: localhost:4317
log_level: warn
`)
	res, err := LoadConfig(path)
	require.NoError(t, err)
	require.True(t, res.DefaultLoaded)

	cfg := res.Config
	require.Equal(t, "from-file.graphql", cfg.Schema)
	require.Equal(t, "queries", cfg.Documents.Dir)
	require.Equal(t, []string{"schema.graphql"}, cfg.Documents.Exclude)
	require.True(t, cfg.Compile.Validate)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	require.Equal(t, 30*time.Second, cfg.Server.Timeout)
	require.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	require.Equal(t, 256, cfg.Server.CacheSize, "unset keys keep their defaults")
	require.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	require.Equal(t, "warn", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestDevelopmentMode(t *testing.T) {
	path := writeConfig(t, "schema: s.graphql\ndev_mode: true\n")
	res, err := LoadConfig(path)
	require.NoError(t, err)
	require.False(t, res.Config.JSONLog)
	require.Equal(t, "debug", res.Config.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "could not read custom config file")

	_, err = LoadConfig(writeConfig(t, "schema: s.graphql\nunknown_key: 1\n"))
	require.ErrorContains(t, err, "failed to unmarshal config")
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Schema:    "s.graphql",
		Documents: Documents{Dir: "."},
		Server:    Server{ListenAddr: "localhost:8080"},
		LogLevel:  "loud",
	}
	require.ErrorContains(t, cfg.Validate(), "LogLevel")

	cfg.LogLevel = "debug"
	cfg.Server.CacheSize = -1
	require.ErrorContains(t, cfg.Validate(), "CacheSize")
}
