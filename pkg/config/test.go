package config

import "time"

func loadTestConfig(cfg *Config) {
	cfg.APIToken = "test"
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.WorkerProcesses = 1
}

// NewForTest returns a Config with test defaults, independent of the
// ENVIRONMENT variable. Tests mutate the returned value freely.
func NewForTest() *Config {
	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: 10 * time.Millisecond,
		DatabaseMaxRetries:        5,
		Hostname:                  "test",
		ScanReconcile:             true,
		ScanStoreTimeout:          30 * time.Second,
		WorkerPollInterval:        10 * time.Millisecond,
	}
	loadTestConfig(cfg)
	return cfg
}
