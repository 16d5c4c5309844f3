package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hibaMouhoub2/prospection-app/auth"
	"github.com/hibaMouhoub2/prospection-app/config"
	"github.com/hibaMouhoub2/prospection-app/db"
	"github.com/hibaMouhoub2/prospection-app/logging"
	"github.com/hibaMouhoub2/prospection-app/metrics"
	"github.com/hibaMouhoub2/prospection-app/migrations"
	"github.com/hibaMouhoub2/prospection-app/prospection"
	"github.com/hibaMouhoub2/prospection-app/revocation"
	"github.com/hibaMouhoub2/prospection-app/structure"
	"github.com/hibaMouhoub2/prospection-app/token"
)

const serviceName = "prospection-api"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Prospection backend: authentication and role-scoped records",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("APP_CONFIG", "config.yaml"), "Path to the YAML config file (env APP_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <plain>",
		Short: "Print a bcrypt hash for seeding identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd, hashCmd)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: serviceName})
	return cfg, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logging.Sync() //nolint:errcheck
	log := logging.L()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	codec, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		return err
	}

	store, closeStore, err := buildRevocationStore(ctx, cfg, codec.RefreshTTL())
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	users := auth.NewRepository(pool)
	structureService := structure.NewService(structure.NewRepository(pool))

	server := &Server{
		authService:        auth.NewService(users, codec, store, structureService),
		gate:               auth.NewGate(codec, store, users, nil),
		prospectionService: prospection.NewService(prospection.NewRepository(pool), users),
		structureService:   structureService,
		corsOrigins:        cfg.Server.CORSOrigins,
		health:             pool.Ping,
		metrics:            promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr), zap.String("revocation", cfg.Revocation.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down http server")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildRevocationStore picks the store named by revocation.driver. Entries
// default to the refresh lifetime, the longest a token can live.
// buildRevocationStore keeps entries no longer than the longest token lifetime.
func buildRevocationStore(ctx context.Context, cfg *config.Config, maxTTL time.Duration) (revocation.Store, func(), error) {
	switch cfg.Revocation.Driver {
	case "redis":
		client, err := revocation.NewRedisClient(ctx, revocation.RedisConfig{
			Addr:     cfg.Revocation.RedisAddr,
			Password: cfg.Revocation.RedisPassword,
			DB:       cfg.Revocation.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		store := revocation.NewRedis(client, cfg.Revocation.KeyPrefix, maxTTL)
		return store, func() { _ = client.Close() }, nil
	default:
		return revocation.NewMemory(maxTTL, 10*time.Minute), func() {}, nil
	}
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: serviceName})
	defer logging.Sync() //nolint:errcheck
	log := logging.L()

	pool, err := db.NewPool(ctx, cfg.Database.URL, 1)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	files, err := migrations.Files()
	if err != nil {
		return err
	}
	for _, name := range files {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}
