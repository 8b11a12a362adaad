package pathing

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var ensureOnce sync.Once

// EnsureDirs creates the data directory tree. Called by anything that is
// about to write under GetDataDir.
func EnsureDirs() {
	ensureOnce.Do(func() {
		dirs := []string{
			GetDataDir(),
		}
		for _, dir := range dirs {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					logrus.Fatal(err)
				}
			}
		}
	})
}

func GetSampleDbPath() string {
	return filepath.Join(GetDataDir(), "power-samples.db")
}

func GetDataDir() string {
	// Overridable so tests and dev runs stay out of /var/lib
	if dir := os.Getenv("POWER_PROFILING_DATA_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/isw8001-power-profiling"
}

func GetConfigDir() string {
	if dir := os.Getenv("POWER_PROFILING_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/isw8001-power-profiling"
}
