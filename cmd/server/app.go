package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/admin"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/config"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/dashboard"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/database"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/inventory"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/metrics"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/notification"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/procurement"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/scheduler"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/server"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"
	"github.com/CarmenSoftware-organization/cmobile-sub001/pkg/logger"
)

type application struct {
	http      *fiber.App
	scheduler *scheduler.Scheduler
	admin     *admin.Service
	closers   []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backends struct {
	kv    storage.Store
	users repository.UserRepository
	units repository.BusinessUnitRepository
	audit audit.Recorder
}

// newApplication opens the configured storage driver and wires the services.
func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger, accessLog bool) (*application, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("memory storage selected, state is lost on restart")
		return wire(ctx, cfg, log, backends{
			kv:    storage.NewMemoryStore(),
			users: repository.NewMemoryUsers(),
			units: repository.NewMemoryBusinessUnits(),
			audit: audit.NewMemoryRecorder(),
		}, accessLog)
	}

	db, err := database.Open(cfg.DatabaseDSN, cfg.LogLevel == "debug", log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, log); err != nil {
		return nil, err
	}
	return newApplicationWithDB(ctx, cfg, log, db, accessLog)
}

func newApplicationWithDB(ctx context.Context, cfg *config.Config, log *zap.Logger, db *gorm.DB, accessLog bool) (*application, error) {
	a, err := wire(ctx, cfg, log, backends{
		kv:    storage.NewGormStore(db),
		users: repository.NewGormUsers(db),
		units: repository.NewGormBusinessUnits(db),
		audit: audit.NewGormRecorder(db),
	}, accessLog)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, log *zap.Logger, b backends, accessLog bool) (*application, error) {
	catalog, err := mockdata.Load()
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	a := &application{}

	adminSvc := admin.NewService(b.users, b.units, b.audit, logger.Named(log, "admin"))
	added, err := adminSvc.SeedBusinessUnits(ctx, catalog.BusinessUnits())
	if err != nil {
		return nil, fmt.Errorf("seed business units: %w", err)
	}
	if added > 0 {
		log.Info("business units seeded", zap.Int("added", added))
	}
	a.admin = adminSvc

	authSvc := auth.NewService(b.kv, b.users, b.units, auth.Options{
		Secret:           cfg.JWTSecret,
		SessionTTL:       cfg.SessionTTL,
		SessionWarning:   cfg.SessionWarning,
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow,
	}, logger.Named(log, "auth"), auth.WithMetrics(m), auth.WithAudit(b.audit))

	hubOpts := []notification.HubOption{notification.WithMetrics(m)}
	var bus *notification.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err := notification.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logger.Named(log, "nats"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		hubOpts = append(hubOpts, notification.WithPublisher(pub))
		bus = pub
	}
	hub := notification.NewHub(b.kv, catalog.Notifications, logger.Named(log, "notifications"), hubOpts...)
	if bus != nil {
		unsubscribe, err := hub.Listen(bus)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = unsubscribe() })
	}

	procSvc := procurement.NewService(procurement.NewMemoryRepository(catalog), logger.Named(log, "procurement"),
		procurement.WithNotifier(hub),
		procurement.WithMetrics(m),
		procurement.WithAudit(b.audit),
	)
	invSvc := inventory.NewService(inventory.NewMemoryRepository(catalog), logger.Named(log, "inventory"),
		inventory.WithAudit(b.audit),
	)

	a.scheduler = scheduler.NewScheduler(scheduler.Config{
		SweepSchedule:    cfg.SweepSchedule,
		ReminderSchedule: cfg.ReminderSchedule,
	}, authSvc, invSvc, b.users, hub, logger.Named(log, "scheduler"))

	a.http = server.New(server.Deps{
		Auth:          authSvc,
		Admin:         adminSvc,
		Audit:         b.audit,
		Notifications: hub,
		Procurement:   procSvc,
		Inventory:     invSvc,
		Dashboard:     dashboard.NewService(procSvc, invSvc, hub),
		Gatherer:      reg,
		CORSOrigins:   cfg.CORSOrigins,
		AccessLog:     accessLog,
	}, logger.Named(log, "http"))

	return a, nil
}
