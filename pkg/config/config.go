package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	APIToken                  string
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	Hostname                  string
	ScanReconcile             bool
	ScanStoreTimeout          time.Duration
	ServerHost                string
	ServerPort                int
	WorkerPollInterval        time.Duration
	WorkerProcesses           int
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		Hostname:                  hostname,
		ScanReconcile:             true,
		ScanStoreTimeout:          30 * time.Second,
		ServerPort:                8096,
		WorkerPollInterval:        5 * time.Second,
		WorkerProcesses:           2,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		if err := loadProductionConfig(cfg); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return cfg, nil
}
