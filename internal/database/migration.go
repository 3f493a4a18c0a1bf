package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"madrasah/internal/common"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type MigrateOpts struct {
	Connection *sql.DB

	// Steps runs that many migrations up (positive) or down (negative),
	// zero applies everything pending
	Steps       int
	ServiceLogs chan<- common.ServiceLog
}

type MigrateResult struct {
	FromVersion uint `json:"fromVersion" yaml:"fromVersion"`
	ToVersion   uint `json:"toVersion" yaml:"toVersion"`
	Changed     bool `json:"changed" yaml:"changed"`
}

func MigrateMysql(opts MigrateOpts) (*MigrateResult, error) {
	serviceLogs := opts.ServiceLogs
	if serviceLogs == nil {
		serviceLogs = common.GetNoopServiceLog()
	}
	driver, err := mysql.WithInstance(opts.Connection, &mysql.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql driver: %w", err)
	}
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator instance: %w", err)
	}
	serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "created migrator instance")

	result := &MigrateResult{}
	version, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get version of current migration: %w", err)
	}
	if isDirty {
		return nil, fmt.Errorf("failed to get a clean slate to run migrations on (current dirty version: %v)", version)
	}
	result.FromVersion = version
	serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "migrator version: %v", version)

	if opts.Steps != 0 {
		serviceLogs <- common.ServiceLogf(common.LogLevelInfo, "running %v steps of migrations", opts.Steps)
		err = migrator.Steps(opts.Steps)
	} else {
		serviceLogs <- common.ServiceLogf(common.LogLevelInfo, "running all pending migrations")
		err = migrator.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			serviceLogs <- common.ServiceLogf(common.LogLevelInfo, "no change detected")
			result.ToVersion = version
			return result, nil
		}
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	if result.ToVersion, _, err = migrator.Version(); err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get version after migration: %w", err)
	}
	result.Changed = result.ToVersion != result.FromVersion
	return result, nil
}

// MigrationNames lists the embedded migration files, used by the
// command line to show what would run
func MigrationNames() ([]string, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
