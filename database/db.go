package database

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
)

// SetupDatabase opens the configured backend and migrates all tables.
// For sqlite target is a file path, for postgres a DSN.
func SetupDatabase(
	dbBackend string,
	target string,
	debug bool,
) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbBackend {
	case BackendSqlite:
		dialector = sqlite.Open(target)
	case BackendPostgres:
		dialector = postgres.Open(target)
	default:
		return nil, fmt.Errorf("unsupported database backend: %s", dbBackend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, debug); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate auto-migrates every table in Tables. With reset set the tables are dropped first.
func Migrate(db *gorm.DB, reset bool) error {
	stmt := &gorm.Statement{DB: db}
	if reset {
		for i, table := range Tables {
			if err := stmt.Parse(table); err != nil {
				return fmt.Errorf("failed to parse table: %w", err)
			}
			log.Printf("Dropping tables (%v/%v): %v", i+1, len(Tables), stmt.Schema.Table)
			if err := db.Migrator().DropTable(table); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", stmt.Schema.Table, err)
			}
		}
	}

	for i, table := range Tables {
		if err := stmt.Parse(table); err != nil {
			return fmt.Errorf("failed to parse table: %w", err)
		}
		log.Printf("Migrating table (%v/%v): %v", i+1, len(Tables), stmt.Schema.Table)
		if err := db.AutoMigrate(table); err != nil {
			return fmt.Errorf("failed to migrate table %s: %w", stmt.Schema.Table, err)
		}
	}

	return nil
}
