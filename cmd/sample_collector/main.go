// Responsible for storing the measurements broadcast by the profiler feed
// and serving the stored history. Depends on the feed being online.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fqueze/isw8001-power-profiling/pkg/config"
	"github.com/fqueze/isw8001-power-profiling/pkg/feedclient"
	"github.com/fqueze/isw8001-power-profiling/pkg/sampledb"
	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

func main() {
	// Initialize database
	sampledb.InitializeDatabase()

	if err := config.LoadSampleCollectorConfig(); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.ActiveSampleCollectorConfig

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveHistory(cfg.ListenAddress, cfg.ListenPort)

	// Subscribe to websocket with revive
	listener := feedclient.NewListener(cfg.ProfilerFeedHost, cfg.TLSEnabled, handleMeasurement)
	if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
		logrus.Fatalf("Feed listener failed: %v", err)
	}
	logrus.Info("Shutting down")
}

func handleMeasurement(m *types.Measurement) {
	if err := sampledb.InsertSample(sampledb.SampleFromMeasurement(m)); err != nil {
		logrus.Errorf("Failed to store sample: %v", err)
	}
}

func serveHistory(address string, port int) {
	http.HandleFunc("/recent", func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				httpError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		samples, err := sampledb.RecentSamples(limit)
		if err != nil {
			logrus.Errorf("Failed to read samples: %v", err)
			httpError(w, http.StatusInternalServerError, "query failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(samples)
	})

	http.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		start, err := queryTimeMs(r, "start_ms", time.Now().Add(-time.Hour))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid start_ms")
			return
		}
		end, err := queryTimeMs(r, "end_ms", time.Now())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid end_ms")
			return
		}

		summary, err := sampledb.SummarizePower(start, end)
		if err != nil {
			logrus.Errorf("Failed to summarize samples: %v", err)
			httpError(w, http.StatusInternalServerError, "query failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	})

	addr := fmt.Sprintf("%s:%d", address, port)
	logrus.Infof("Serving sample history on %s", addr)
	logrus.Fatal(http.ListenAndServe(addr, nil))
}

func queryTimeMs(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func httpError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
