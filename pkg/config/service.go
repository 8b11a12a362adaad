package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fqueze/isw8001-power-profiling/pkg/pathing"
)

var (
	ActiveProfilerFeedConfig    *ProfilerFeedConfig
	ActiveSampleCollectorConfig *SampleCollectorConfig
)

func LoadProfilerFeedConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "profiler_feed.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &ProfilerFeedConfig{
			Meter:               "isw8001",
			SerialDevice:        "/dev/ttyUSB0",
			Baudrate:            9600,
			SoftwareFlowControl: true,
			PollIntervalMs:      50,
			ListenAddress:       "0.0.0.0",
			ListenPort:          2121,
		}
		// Create file
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveProfilerFeedConfig = cfg
		return nil
	}

	// Load existing config
	var config ProfilerFeedConfig
	_, err := toml.DecodeFile(configPath, &config)
	if err != nil {
		return err
	}
	ActiveProfilerFeedConfig = &config
	return nil
}

func LoadSampleCollectorConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "sample_collector.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &SampleCollectorConfig{
			ProfilerFeedHost: "localhost:2121",
			TLSEnabled:       false,
			ListenAddress:    "0.0.0.0",
			ListenPort:       2122,
		}
		// Create file
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveSampleCollectorConfig = cfg
		return nil
	}

	// Load existing config
	var config SampleCollectorConfig
	_, err := toml.DecodeFile(configPath, &config)
	if err != nil {
		return err
	}
	ActiveSampleCollectorConfig = &config
	return nil
}
