// Command elibctl administers a library directly through its document,
// without the desktop UI. Stop the server first when using the file
// backend: both processes would otherwise hold their own document lock.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/auth"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/config"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository/docstore"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/service"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/storage"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store/sqlite"
)

// app is what every subcommand works with, built once the flags are known.
type app struct {
	out      io.Writer
	asJSON   bool
	docs     *store.Store
	files    *storage.FileStore
	userRepo *docstore.UserRepo
	ebooks   *docstore.EbookRepo
	users    *service.UserService
	closer   io.Closer
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		configFile string
		envFile    string
		dataDir    string
		a          = &app{out: out}
	)

	root := &cobra.Command{
		Use:           "elibctl",
		Short:         "elibctl manages an e-library installation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, envFile)
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			return a.open(cmd.Context(), cfg)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("ELIB_CONFIG"), "YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", ".env file")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the configured data directory")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(newUsersCmd(a), newEbooksCmd(a), newDoctorCmd(a))
	return root
}

func (a *app) open(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(os.Stderr, "warn", "text")

	var backend store.Backend
	if cfg.Backend == config.BackendSQLite {
		db, err := sqlite.New(cfg.SQLiteFile())
		if err != nil {
			return err
		}
		backend, a.closer = db, db
	} else {
		backend = store.NewFileBackend(cfg.DocumentPath(), cfg.TemplatePath)
	}

	a.docs = store.New(backend, store.Options{LockTimeout: cfg.LockTimeout}, logger)
	if err := a.docs.Initialize(ctx); err != nil {
		return fmt.Errorf("opening %s: %w", backend.Location(), err)
	}

	files, err := storage.NewFileStore(cfg.EbooksPath())
	if err != nil {
		return err
	}
	passwords, err := auth.NewPasswordService(auth.Scheme(cfg.PasswordScheme), cfg.BcryptCost)
	if err != nil {
		return err
	}

	a.files = files
	a.userRepo = docstore.NewUserRepo(a.docs)
	a.ebooks = docstore.NewEbookRepo(a.docs)
	a.users = service.NewUserService(a.userRepo, docstore.NewSessionRepo(a.docs), passwords, service.SystemClock, logger)
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		slog.Error("elibctl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
