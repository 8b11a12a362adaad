// Profiler feed is responsible for driving the configured power meter and
// broadcasting decoded measurements to dashboard clients.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fqueze/isw8001-power-profiling/pkg/bcdmeter"
	"github.com/fqueze/isw8001-power-profiling/pkg/config"
	"github.com/fqueze/isw8001-power-profiling/pkg/iswmeter"
	"github.com/fqueze/isw8001-power-profiling/pkg/psutils"
	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// ws clients for broadcasting live measurements
var (
	wsClients      = make(map[*websocket.Conn]bool)
	wsClientsMutex sync.RWMutex
)

var (
	latestMutex       sync.RWMutex
	latestMeasurement *types.Measurement
	sessionEnergy     psutils.EnergyIntegrator
)

func main() {
	if err := config.LoadProfilerFeedConfig(); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.ActiveProfilerFeedConfig

	driver, err := openMeter(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open meter: %v", err)
	}
	defer driver.Close()

	driver.Subscribe(handleMeasurement)
	if err := driver.EnableAutoMode(); err != nil {
		logrus.Fatalf("Failed to enable auto mode: %v", err)
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "ISW8001 power profiling feed",
			"meter":   cfg.Meter,
			"status":  "running",
		})
	})

	http.HandleFunc("/latest", latestHandler)
	http.HandleFunc("/energy", energyHandler)
	http.HandleFunc("/ws", wsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	logrus.Infof("Starting profiler feed on %s", addr)
	logrus.Fatal(http.ListenAndServe(addr, nil))
}

func openMeter(cfg *config.ProfilerFeedConfig) (types.MeterDriver, error) {
	switch cfg.Meter {
	case iswmeter.MeterName:
		return iswmeter.Open(iswmeter.Config{
			Device:              cfg.SerialDevice,
			BaudRate:            cfg.Baudrate,
			SoftwareFlowControl: cfg.SoftwareFlowControl,
		})
	case bcdmeter.MeterName:
		return bcdmeter.Open(bcdmeter.Config{
			Device:      cfg.SerialDevice,
			BaudRate:    cfg.Baudrate,
			MinInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		})
	default:
		return nil, fmt.Errorf("unknown meter model %q", cfg.Meter)
	}
}

func latestHandler(w http.ResponseWriter, r *http.Request) {
	latestMutex.RLock()
	m := latestMeasurement
	latestMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if m == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "No measurements available yet",
		})
		return
	}
	json.NewEncoder(w).Encode(m)
}

func energyHandler(w http.ResponseWriter, r *http.Request) {
	latestMutex.RLock()
	wh := sessionEnergy.TotalWh()
	latestMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{
		"session_wh": wh,
	})
}

func wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	// Send the current measurement before registering for broadcasts, so
	// this write cannot interleave with a broadcast to the same connection.
	latestMutex.RLock()
	m := latestMeasurement
	latestMutex.RUnlock()
	if m != nil {
		if data, err := json.Marshal(m); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	addWsClient(conn)

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			removeWsClient(conn)
			break
		}
	}
}

func handleMeasurement(m *types.Measurement) {
	latestMutex.Lock()
	latestMeasurement = m
	sessionEnergy.Add(m)
	latestMutex.Unlock()

	broadcastToWebSockets(m)
}

func broadcastToWebSockets(m *types.Measurement) {
	wsClientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(wsClients))
	for client := range wsClients {
		clients = append(clients, client)
	}
	wsClientsMutex.RUnlock()

	data, err := json.Marshal(m)
	if err != nil {
		logrus.Errorf("Error marshaling measurement: %v", err)
		return
	}

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			removeWsClient(client)
		}
	}
}

func addWsClient(conn *websocket.Conn) {
	wsClientsMutex.Lock()
	wsClients[conn] = true
	wsClientsMutex.Unlock()
}

func removeWsClient(conn *websocket.Conn) {
	wsClientsMutex.Lock()
	delete(wsClients, conn)
	wsClientsMutex.Unlock()
	conn.Close()
}
