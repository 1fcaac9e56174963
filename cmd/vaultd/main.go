// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// vaultd is the WebNova Vault daemon and operator CLI. It stores SSH keys
// encrypted per field, gates access behind a multi-factor session flow and
// keeps an append-only audit trail.
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

	_ "github.com/go-sql-driver/mysql" // mysql driver registration
	_ "github.com/jackc/pgx/v5/stdlib" // pgx stdlib driver registration
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite" // sqlite driver registration

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/auth"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/config"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/i18n"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/logging"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/notify"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/server"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/vault"
)

var version = "dev"

var cfgFile string

// cfg holds the resolved configuration; set in PersistentPreRunE and shared
// by all subcommands.
var cfg config.Config

// store is opened once in PersistentPreRunE and shared by all subcommands.
var store db.Store

func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

func configDefaults() map[string]any {
	return map[string]any{
		"database.type": "sqlite",
		"database.dsn":  "./webnova.db",
		"server.listen": ":8440",
		"language":      "en",
	}
}

// newRootCmd creates and configures a new root cobra command. Fresh
// instances are also used for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultd",
		Short: "vaultd is the WebNova credential vault for SSH keys.",
		Long: `vaultd keeps SSH private keys encrypted at rest, each field sealed
under a key derived from the vault master password. Access requires a
password, an emailed one-time code and an authenticator code, in that
order. Every operation lands in an append-only audit trail.

Running without a subcommand starts the HTTP server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadConfig(cmd, configDefaults(), &cfgFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			cfg = c

			i18n.Init(cfg.Language)
			logging.SetDebug(cfg.Debug)
			db.SetDebug(cfg.Debug)

			s, err := db.NewStoreFromDSN(cfg.Database.Type, cfg.Database.Dsn)
			if err != nil {
				return fmt.Errorf("could not initialize database: %w", err)
			}
			store = s
			logging.Infof("%s", i18n.Tf("serve.db_connected", map[string]any{"Type": cfg.Database.Type}))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(serveCmd)
	cmd.AddCommand(adminCmd)
	cmd.AddCommand(auditCmd)
	cmd.AddCommand(generateCmd)
	cmd.AddCommand(backupCmd)
	cmd.AddCommand(restoreCmd)
	cmd.AddCommand(maintenanceCmd)
	cmd.AddCommand(configCmd)

	cmd.Version = version

	// Flag names follow the config keys so LoadConfig can bind them directly.
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is webnova.yaml in the config dir)")
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "./webnova.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("language", "en", `CLI language ("en", "de")`)
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return cmd
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the resolved configuration to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetBool("system")
		if err := config.WriteConfigFile(&cfg, system); err != nil {
			return err
		}
		fmt.Println(i18n.T("config.written"))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vault HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	recorder := audit.NewRecorder(store)

	var sender notify.Sender
	if cfg.SMTP.Host != "" {
		s, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return err
		}
		sender = s
	}

	mgr := auth.NewManager(store, recorder, sender)
	creds := vault.NewCredentialStore(store, recorder)
	handler := server.New(mgr, creds, store, recorder, server.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	listen := cfg.Server.Listen
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Expired sessions are swept in the background; the hard expiry check
	// on every request is what actually enforces the cutoff.
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweepSessions(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("%s", i18n.Tf("serve.starting", map[string]any{"Listen": listen}))
		errCh <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-sig:
	case <-ctx.Done():
	}

	logging.Infof("%s", i18n.T("serve.shutdown"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpiredSessions(ctx, time.Now().UTC())
			if err != nil {
				logging.Errorf("session sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logging.Debugf("purged %d expired sessions", n)
			}
		}
	}
}
