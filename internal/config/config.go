// Package config loads backend settings.
//
// Sources, later ones winning: built-in defaults, an optional YAML file,
// a .env file (never overriding variables already set in the process
// environment), then ELIB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds every backend setting.
type Config struct {
	DataDir      string `yaml:"dataDir"`
	DocumentFile string `yaml:"documentFile"`
	EbooksDir    string `yaml:"ebooksDir"`
	// TemplatePath seeds a brand-new document. Optional.
	TemplatePath string `yaml:"templatePath"`
	Backend      string `yaml:"backend"`
	SQLitePath   string `yaml:"sqlitePath"`

	ListenAddr string `yaml:"listenAddr"`
	LogLevel   string `yaml:"logLevel"`
	LogFormat  string `yaml:"logFormat"`

	PasswordScheme  string        `yaml:"passwordScheme"`
	BcryptCost      int           `yaml:"bcryptCost"`
	LockTimeout     time.Duration `yaml:"lockTimeout"`
	ListConcurrency int           `yaml:"listConcurrency"`

	// BridgeSecret signs bridge tokens. Empty means a random secret per run.
	// BridgeTokenTTL 0 mints a token that never expires; nothing refreshes
	// the token file while the server runs.
	BridgeSecret   string        `yaml:"bridgeSecret"`
	BridgeTokenTTL time.Duration `yaml:"bridgeTokenTTL"`
	AdminPassword  string        `yaml:"adminPassword"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		DataDir:         "data",
		DocumentFile:    "db.json",
		EbooksDir:       "ebooks",
		Backend:         BackendFile,
		ListenAddr:      "127.0.0.1:7345",
		LogLevel:        "info",
		LogFormat:       "text",
		PasswordScheme:  "legacy",
		BcryptCost:      10,
		LockTimeout:     10 * time.Second,
		ListConcurrency: 4,
		AdminPassword:   "AdminKey1",
	}
}

// Load builds a Config. path names an optional YAML file; envFile an
// optional .env file. Either may be empty. A missing .env file is not an
// error; a missing YAML file that was asked for is.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ELIB_DATA_DIR":        &cfg.DataDir,
		"ELIB_DOCUMENT_FILE":   &cfg.DocumentFile,
		"ELIB_EBOOKS_DIR":      &cfg.EbooksDir,
		"ELIB_TEMPLATE_PATH":   &cfg.TemplatePath,
		"ELIB_BACKEND":         &cfg.Backend,
		"ELIB_SQLITE_PATH":     &cfg.SQLitePath,
		"ELIB_LISTEN_ADDR":     &cfg.ListenAddr,
		"ELIB_LOG_LEVEL":       &cfg.LogLevel,
		"ELIB_LOG_FORMAT":      &cfg.LogFormat,
		"ELIB_PASSWORD_SCHEME": &cfg.PasswordScheme,
		"ELIB_BRIDGE_SECRET":   &cfg.BridgeSecret,
		"ELIB_ADMIN_PASSWORD":  &cfg.AdminPassword,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ELIB_BCRYPT_COST":      &cfg.BcryptCost,
		"ELIB_LIST_CONCURRENCY": &cfg.ListConcurrency,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"ELIB_LOCK_TIMEOUT":     &cfg.LockTimeout,
		"ELIB_BRIDGE_TOKEN_TTL": &cfg.BridgeTokenTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DataDir) == "":
		return errors.New("config: dataDir is required")
	case strings.TrimSpace(c.DocumentFile) == "":
		return errors.New("config: documentFile is required")
	case c.Backend != BackendFile && c.Backend != BackendSQLite:
		return fmt.Errorf("config: backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Backend)
	case c.PasswordScheme != "legacy" && c.PasswordScheme != "bcrypt":
		return fmt.Errorf("config: passwordScheme must be legacy or bcrypt, got %q", c.PasswordScheme)
	case c.BcryptCost < 4 || c.BcryptCost > 31:
		return fmt.Errorf("config: bcryptCost must be between 4 and 31, got %d", c.BcryptCost)
	case c.LockTimeout < 0:
		return errors.New("config: lockTimeout must not be negative")
	case c.ListConcurrency <= 0:
		return errors.New("config: listConcurrency must be positive")
	case c.BridgeTokenTTL < 0:
		return errors.New("config: bridgeTokenTTL must not be negative")
	case c.BridgeSecret != "" && len(c.BridgeSecret) < 16:
		return errors.New("config: bridgeSecret must be at least 16 characters")
	}
	return nil
}

// DocumentPath is where the file backend keeps the document.
func (c Config) DocumentPath() string {
	return c.underData(c.DocumentFile)
}

// EbooksPath is the managed ebook directory.
func (c Config) EbooksPath() string {
	return c.underData(c.EbooksDir)
}

// SQLiteFile is where the sqlite backend keeps its database.
func (c Config) SQLiteFile() string {
	if c.SQLitePath == "" {
		return c.underData("library.db")
	}
	return c.underData(c.SQLitePath)
}

// TokenPath is where the server writes the bridge token for the UI.
func (c Config) TokenPath() string {
	return c.underData("bridge.token")
}

func (c Config) underData(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
