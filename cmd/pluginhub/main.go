package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/dukerupert/pluginhub/internal/auth"
	"github.com/dukerupert/pluginhub/internal/backup"
	"github.com/dukerupert/pluginhub/internal/config"
	"github.com/dukerupert/pluginhub/internal/database"
	"github.com/dukerupert/pluginhub/internal/email"
	"github.com/dukerupert/pluginhub/internal/logging"
	"github.com/dukerupert/pluginhub/internal/payment"
	"github.com/dukerupert/pluginhub/internal/server"
	"github.com/dukerupert/pluginhub/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pluginhub",
	Short:         "Minecraft plugin marketplace API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, flush := logging.Setup(cfg.LogLevel, cfg.LogFormat)
		defer flush()

		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		logger.Info("migrations applied", "db_path", cfg.DBPath)
		return db.Close()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an account token for the given account id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("jwt_secret is not configured")
		}
		account, _ := cmd.Flags().GetString("account")
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if account == "" {
			return errors.New("--account is required")
		}
		if ttl < 0 {
			return errors.New("--ttl must not be negative")
		}
		token, err := auth.NewAccountToken([]byte(cfg.JWTSecret), account, email, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database into the file store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupManager(func(ctx context.Context, m *backup.Manager, cfg config.Config) error {
			info, err := m.Run(ctx)
			if err != nil {
				return err
			}
			if _, err := m.Prune(ctx, cfg.BackupKeep); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.Path)
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot>",
	Short: "Write a stored snapshot to a database file",
	Long:  "Fetches a snapshot from the file store and writes it to --out. Stop the server before replacing its database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return withBackupManager(func(ctx context.Context, m *backup.Manager, cfg config.Config) error {
			if out == "" {
				out = cfg.DBPath + ".restored"
			}
			return m.Restore(ctx, args[0], out)
		})
	},
}

func withBackupManager(fn func(context.Context, *backup.Manager, config.Config) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, flush := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	defer flush()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	files, err := openStorage(cfg)
	if err != nil {
		return err
	}
	m := backup.NewManager(db, files, cfg.BackupPassphrase, logger.With("component", "backup"))
	return fn(context.Background(), m, cfg)
}

func openStorage(cfg config.Config) (storage.FileStore, error) {
	files, err := storage.New(storage.Config{
		Backend: cfg.StorageBackend,
		Root:    cfg.StorageRoot,
		S3: storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return files, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (yaml, toml or json)")
	tokenCmd.Flags().String("account", "", "account id to put in the subject")
	tokenCmd.Flags().String("email", "", "email claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	restoreCmd.Flags().StringP("out", "o", "", "database file to write (default <db_path>.restored)")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd, backupCmd, restoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, flush := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	defer flush()

	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files, err := openStorage(cfg)
	if err != nil {
		return err
	}

	var payments *payment.Client
	if cfg.PaymentsEnabled() {
		payments = payment.NewClient(payment.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Currency:      cfg.StripeCurrency,
		})
	} else {
		logger.Warn("stripe is not configured, payment routes disabled")
	}

	srv := server.New(db, files, payments, []byte(cfg.JWTSecret), cfg.PluginTokenTTL, logger)
	srv.AllowOperators(cfg.OperatorClients)
	if cfg.ReceiptsEnabled() {
		srv.EnableReceipts(email.NewClient(cfg.PostmarkServerToken, cfg.EmailFrom))
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go runCleanup(cleanupCtx, srv, cfg, logger.With("component", "cleanup"))
	if cfg.BackupInterval > 0 {
		backups := backup.NewManager(db, files, cfg.BackupPassphrase, logger.With("component", "backup"))
		go runBackups(cleanupCtx, backups, cfg.BackupInterval, cfg.BackupKeep, logger.With("component", "backup"))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pluginhub listening", "port", cfg.Port, "storage", cfg.StorageBackend, "payments", cfg.PaymentsEnabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runCleanup(ctx context.Context, srv *server.Server, cfg config.Config, logger *slog.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := srv.AuthService().PurgeExpired(ctx); err != nil {
				logger.Error("purge expired denylist tokens", "error", err)
			} else if n > 0 {
				logger.Info("purged expired denylist tokens", "count", n)
			}
			if cfg.DownloadLinkTTL > 0 {
				if n, err := srv.VersionService().PurgeLinks(ctx, cfg.DownloadLinkTTL); err != nil {
					logger.Error("purge download links", "error", err)
				} else if n > 0 {
					logger.Info("purged download links", "count", n)
				}
			}
			if n := srv.RateLimiter().Cleanup(); n > 0 {
				logger.Debug("evicted rate limit entries", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func runBackups(ctx context.Context, m *backup.Manager, interval time.Duration, keep int, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := m.Run(ctx); err != nil {
				logger.Error("scheduled backup", "error", err)
				continue
			}
			if _, err := m.Prune(ctx, keep); err != nil {
				logger.Error("prune backups", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
