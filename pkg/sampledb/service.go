// SampleDB stores the measurement history collected from the profiler feed.
// Only sample_collector writes to it; any service may read it. Driver state
// is never stored here: reconnects always start clean.
package sampledb

import (
	"database/sql"
	"embed"
	"sync"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/sirupsen/logrus"

	"github.com/fqueze/isw8001-power-profiling/pkg/pathing"

	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	once sync.Once
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Initialize must be called manually on startup
func InitializeDatabase() {
	// Create DB before migrations
	db := GetDB()
	_, err := db.Exec("SELECT 1;")
	if err != nil {
		logrus.Warnf("Could not create DB: %v", err)
	}

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
}

func GetDB() *sql.DB {
	once.Do(func() {
		pathing.EnsureDirs()
		var err error
		db, err = sql.Open("sqlite", pathing.GetSampleDbPath())
		if err != nil {
			logrus.Fatal(err)
		}
		// Verify connection
		if err = db.Ping(); err != nil {
			logrus.Fatal(err)
		}
	})
	return db
}
