package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/admin"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/config"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/database"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"
	"github.com/CarmenSoftware-organization/cmobile-sub001/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func setup(envFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.UsesDefaultDSN() && cfg.StorageDriver == config.StorageDriverPostgres {
		log.Warn("DATABASE_DSN not set, using development default")
	}
	if cfg.UsesDefaultCORS() {
		log.Warn("CORS_ALLOWED_ORIGINS not set, allowing development origin only")
	}
	return cfg, log, nil
}

func serveCmd(envFile *string) *cobra.Command {
	var accessLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApplication(ctx, cfg, log, accessLog)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler.Start(); err != nil {
				return err
			}
			defer a.scheduler.Stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageDriver))
				errCh <- a.http.Listen(":" + cfg.HTTPPort)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			if err := a.http.ShutdownWithTimeout(shutdownTimeout); err != nil {
				log.Error("http shutdown", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "Log every HTTP request")
	return cmd
}

func migrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and seed business units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.StorageDriver != config.StorageDriverPostgres {
				return errors.New("migrate requires STORAGE_DRIVER=postgres")
			}

			db, err := database.Open(cfg.DatabaseDSN, cfg.LogLevel == "debug", log)
			if err != nil {
				return err
			}
			if err := database.Migrate(db, log); err != nil {
				return err
			}
			catalog, err := mockdata.Load()
			if err != nil {
				return err
			}
			svc := admin.NewService(repository.NewGormUsers(db), repository.NewGormBusinessUnits(db), audit.NewGormRecorder(db), log)
			added, err := svc.SeedBusinessUnits(cmd.Context(), catalog.BusinessUnits())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migration complete, %d business units added\n", added)
			return nil
		},
	}
}

func createUserCmd(envFile *string) *cobra.Command {
	var in admin.NewUser
	var role, units string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.StorageDriver != config.StorageDriverPostgres {
				return errors.New("create-user requires STORAGE_DRIVER=postgres")
			}

			db, err := database.Open(cfg.DatabaseDSN, false, log)
			if err != nil {
				return err
			}
			a, err := newApplicationWithDB(cmd.Context(), cfg, log, db, false)
			if err != nil {
				return err
			}
			defer a.Close()

			in.Role = models.UserRole(role)
			for _, code := range strings.Split(units, ",") {
				if code = strings.TrimSpace(code); code != "" {
					in.BusinessUnits = append(in.BusinessUnits, code)
				}
			}
			cli := models.Actor{Name: "cli", Role: models.RoleAdmin}
			user, err := a.admin.CreateUser(cmd.Context(), cli, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s> as %s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&in.Department, "department", "", "Department")
	cmd.Flags().StringVar(&role, "role", string(models.RoleRequestor), "Role")
	cmd.Flags().StringVar(&units, "business-units", "", "Comma-separated business unit codes")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
