package commands

import (
	"fmt"

	"github.com/wisetech/rras/internal/audit"
	"github.com/wisetech/rras/internal/events"
	"github.com/wisetech/rras/internal/pipeline"
	"github.com/wisetech/rras/internal/rules"
	"github.com/wisetech/rras/internal/store"
	"github.com/wisetech/rras/pkg/config"
	"github.com/wisetech/rras/pkg/database"
	"github.com/wisetech/rras/pkg/logger"
	"github.com/wisetech/rras/pkg/redis"
)

// deps holds the wired application components shared by the commands.
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	rds     *redis.Client
	runs    *store.RunRepository
	metrics *store.MetricRepository
	audits  *store.AuditRepository
	orch    *pipeline.Orchestrator
}

// initDeps loads configuration and wires the full pipeline stack.
func initDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rds, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	runs := store.NewRunRepository(db)
	metrics := store.NewMetricRepository(db)
	audits := store.NewAuditRepository(db)
	snapshots := store.NewSnapshotRepository(db)
	copier := store.NewSnapshotCopier(db)
	tx := store.NewTxManager(db)

	notifier := events.NewStreamNotifier(rds, cfg.Redis.EventStream, log)
	trail := audit.NewTrail(audits, log)

	orch := pipeline.NewOrchestrator(
		runs, copier, snapshots, metrics, tx, trail, notifier,
		rules.FromConfig(cfg.Regulatory), log,
	)

	return &deps{
		cfg:     cfg,
		log:     log,
		db:      db,
		rds:     rds,
		runs:    runs,
		metrics: metrics,
		audits:  audits,
		orch:    orch,
	}, nil
}

// close releases the shared connections.
func (d *deps) close() {
	if d.rds != nil {
		_ = d.rds.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}
