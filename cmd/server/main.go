// Command server is the e-library backend. The desktop UI starts it, reads
// the bridge token it writes into the data directory, and calls the bridge
// on loopback for everything that touches the library document or the
// managed ebook files.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/auth"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/config"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository/docstore"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/server"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/service"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/storage"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv("ELIB_CONFIG"), "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "path to a .env file")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend, closers, err := openBackend(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	docs := store.New(backend, store.Options{
		LockTimeout: cfg.LockTimeout,
		Metrics:     store.NewMetrics(reg),
	}, logger)
	if err := docs.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing library document: %w", err)
	}

	files, err := storage.NewFileStore(cfg.EbooksPath())
	if err != nil {
		return err
	}

	passwords, err := auth.NewPasswordService(auth.Scheme(cfg.PasswordScheme), cfg.BcryptCost)
	if err != nil {
		return err
	}

	users := service.NewUserService(docstore.NewUserRepo(docs), docstore.NewSessionRepo(docs), passwords, service.SystemClock, logger)
	if err := users.EnsureAdmin(ctx, cfg.AdminPassword); err != nil {
		return err
	}
	ebooks := service.NewEbookService(docstore.NewEbookRepo(docs), files, service.SystemClock, logger, cfg.ListConcurrency)
	readings := service.NewReadingService(docstore.NewReadingRepo(docs), service.SystemClock, logger)

	secret := cfg.BridgeSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return err
		}
	}
	tokens, err := auth.NewTokenService(secret, cfg.BridgeTokenTTL)
	if err != nil {
		return err
	}
	if err := server.WriteToken(tokens, cfg.TokenPath()); err != nil {
		return err
	}

	logger.Info("library ready",
		slog.String("document", docs.Location()),
		slog.String("ebooks", files.BasePath()),
		slog.String("password_scheme", string(passwords.Scheme())),
		slog.String("token_file", cfg.TokenPath()),
		slog.Duration("token_ttl", cfg.BridgeTokenTTL),
	)

	srv, err := server.New(server.Config{ListenAddr: cfg.ListenAddr}, server.Deps{
		Users:    users,
		Ebooks:   ebooks,
		Readings: readings,
		Tokens:   tokens,
		Registry: reg,
		Closers:  closers,
	}, logger)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

func openBackend(cfg config.Config) (store.Backend, []io.Closer, error) {
	if cfg.Backend == config.BackendSQLite {
		db, err := sqlite.New(cfg.SQLiteFile())
		if err != nil {
			return nil, nil, err
		}
		return db, []io.Closer{db}, nil
	}
	return store.NewFileBackend(cfg.DocumentPath(), cfg.TemplatePath), nil, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating bridge secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
