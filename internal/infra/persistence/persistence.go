// Package persistence selects a durable backend for the collection store.
package persistence

import (
	"fmt"
	"os"

	"collectioncore/internal/core"
	"collectioncore/internal/infra/persistence/postgres"
	"collectioncore/internal/infra/persistence/sqlite"
	"collectioncore/pkg/domain"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	COLLECTIONCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	COLLECTIONCORE_SQLITE_PATH: path to sqlite file (default ./collectioncore.db)
//	COLLECTIONCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(engine *core.RulesEngine) (domain.PersistentStore, error) {
	driver := os.Getenv("COLLECTIONCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return core.NewMemoryStore(engine), nil
	case DriverSQLite:
		path := os.Getenv("COLLECTIONCORE_SQLITE_PATH")
		return sqlite.NewStore(path, core.NewMemoryStore(engine))
	case DriverPostgres:
		dsn := os.Getenv("COLLECTIONCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, core.NewMemoryStore(engine))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
