package config

type ProfilerFeedConfig struct {
	// Meter selects the driver: "isw8001" or "bcdmeter".
	Meter        string `toml:"meter"`
	SerialDevice string `toml:"serial_device"`
	Baudrate     uint   `toml:"baudrate"`
	// XON/XOFF handling for the ISW8001. Must stay false for the bcdmeter,
	// whose value bytes collide with the flow-control bytes.
	SoftwareFlowControl bool `toml:"software_flow_control"`
	// Minimum spacing between bcdmeter read requests, in milliseconds.
	PollIntervalMs int    `toml:"poll_interval_ms"`
	ListenAddress  string `toml:"listen_address"`
	ListenPort     int    `toml:"listen_port"`
}

type SampleCollectorConfig struct {
	ProfilerFeedHost string `toml:"profiler_feed_host"`
	TLSEnabled       bool   `toml:"tls_enabled"`
	// History query API.
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}
