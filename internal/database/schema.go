package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan is what ApplySchema will do for a config.
type schemaPlan struct {
	mode    string
	runSQL  bool
	runAuto bool
}

// TableStatus reports one idea-ledger table.
type TableStatus struct {
	Name   string
	Exists bool
	Rows   int64
}

type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	Tables             []TableStatus
	// CounterDrift counts ideas whose up and down counters do not add up to the total.
	CounterDrift int64
}

// Ready reports whether every table exists and no SQL migration is pending.
func (s *SchemaStatus) Ready() bool {
	if len(s.PendingMigrations) > 0 {
		return false
	}
	for _, t := range s.Tables {
		if !t.Exists {
			return false
		}
	}
	return true
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema resolves DB_SCHEMA_MODE. Hybrid skips AutoMigrate in production-like
// environments, and auto mode there needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.mode == "" {
		plan.mode = SchemaModeHybrid
	}

	switch plan.mode {
	case SchemaModeSQL:
		plan.runSQL = true
	case SchemaModeAuto:
		if isProdLikeEnv(cfg.Env) && !cfg.DBAutoMigrateAllowDestructive {
			return schemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.runAuto = true
	case SchemaModeHybrid:
		plan.runSQL = true
		plan.runAuto = !isProdLikeEnv(cfg.Env)
	default:
		return schemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// AutoMigrate creates or updates every domain table from the gorm models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// ApplySchema runs SQL migrations and/or AutoMigrate according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.runAuto {
		return nil
	}

	if plan.mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
		middleware.Logger.Warn("AutoMigrate allowed outside development; review the ledger schema diff before deploying")
	}
	middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus describes the schema plan, pending SQL migrations, the idea-ledger
// tables and any ideas whose vote counters have drifted.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.runSQL,
		WillRunAutoMigrate: plan.runAuto,
	}

	if plan.runSQL {
		applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
		if err != nil {
			return nil, err
		}
		status.AppliedVersions = applied

		seen := make(map[int]bool, len(applied))
		for _, version := range applied {
			seen[version] = true
		}
		for _, m := range GetMigrations() {
			if !seen[m.Version] {
				status.PendingMigrations = append(status.PendingMigrations, m)
			}
		}
	}

	tables, err := tableInventory(ctx, db)
	if err != nil {
		return nil, err
	}
	status.Tables = tables

	if hasTable(tables, "ideas") {
		err := db.WithContext(ctx).Model(&models.Idea{}).
			Where("up_endorsements_count + down_endorsements_count <> endorsements_count").
			Count(&status.CounterDrift).Error
		if err != nil {
			return nil, fmt.Errorf("check idea counters: %w", err)
		}
	}
	return status, nil
}

func tableInventory(ctx context.Context, db *gorm.DB) ([]TableStatus, error) {
	db = db.WithContext(ctx)
	all := models.All()
	tables := make([]TableStatus, 0, len(all))
	for _, m := range all {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", m, err)
		}
		t := TableStatus{Name: stmt.Schema.Table, Exists: db.Migrator().HasTable(m)}
		if t.Exists {
			if err := db.Model(m).Count(&t.Rows).Error; err != nil {
				return nil, fmt.Errorf("count %s: %w", t.Name, err)
			}
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func hasTable(tables []TableStatus, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return t.Exists
		}
	}
	return false
}
