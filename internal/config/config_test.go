package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// unsetAfter removes key from the environment when the test ends. godotenv
// writes straight to the process environment.
func unsetAfter(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, filepath.Join("data", "db.json"), cfg.DocumentPath())
	assert.Equal(t, filepath.Join("data", "ebooks"), cfg.EbooksPath())
	assert.Equal(t, filepath.Join("data", "library.db"), cfg.SQLiteFile())
	assert.Equal(t, filepath.Join("data", "bridge.token"), cfg.TokenPath())
	assert.Zero(t, cfg.BridgeTokenTTL, "the bridge token never expires by default")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, "elib.yaml", `
dataDir: /var/lib/elib
backend: sqlite
passwordScheme: bcrypt
lockTimeout: 3s
listConcurrency: 8
ebooksDir: /srv/books
`)
	t.Setenv("ELIB_LIST_CONCURRENCY", "2")
	t.Setenv("ELIB_LOG_LEVEL", "debug")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/elib", cfg.DataDir)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "bcrypt", cfg.PasswordScheme)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, 2, cfg.ListConcurrency, "env wins over yaml")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/books", cfg.EbooksPath(), "absolute paths are kept")
	assert.Equal(t, filepath.Join("/var/lib/elib", "db.json"), cfg.DocumentPath())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	unsetAfter(t, "ELIB_LOG_FORMAT")
	t.Setenv("ELIB_LOG_LEVEL", "warn")
	envFile := writeFile(t, ".env", "ELIB_LOG_FORMAT=json\nELIB_LOG_LEVEL=error\n")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad backend", yaml: "backend: postgres"},
		{name: "bad scheme", yaml: "passwordScheme: md5"},
		{name: "bad cost", yaml: "bcryptCost: 2"},
		{name: "short secret", yaml: "bridgeSecret: short"},
		{name: "zero concurrency", yaml: "listConcurrency: 0"},
		{name: "negative token ttl", yaml: "bridgeTokenTTL: -1h"},
		{name: "bad yaml", yaml: "backend: [file"},
		{name: "bad int env", env: map[string]string{"ELIB_BCRYPT_COST": "ten"}},
		{name: "bad duration env", env: map[string]string{"ELIB_LOCK_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "elib.yaml", tt.yaml)
			}
			_, err := Load(path, "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingYAML(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "warn", "json").Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, "warn", "json").Warn("shown", slog.String("k", "v"))
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	NewLogger(&buf, "nonsense", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
