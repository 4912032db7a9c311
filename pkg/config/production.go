package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const envPrefix = "KINOTEKA_"

func configFilePath() string {
	configDir := os.Getenv("CONFIG_DIRECTORY")
	if configDir == "" {
		configDir = "/config"
	}
	return configDir + "/kinoteka.yaml"
}

// loadProductionConfig layers an optional YAML config file and KINOTEKA_*
// environment variables over the defaults. Environment variables win, e.g.
// KINOTEKA_SERVER_PORT overrides server.port from the file.
func loadProductionConfig(cfg *Config) error {
	k := koanf.New(".")

	path := configFilePath()
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return errors.WithStack(err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	cfg.DatabaseFilePath = "/config/data.sqlite"
	cfg.ServerHost = "0.0.0.0"

	if v := k.String("api.token"); v != "" {
		cfg.APIToken = v
	}
	if v := k.String("database.path"); v != "" {
		cfg.DatabaseFilePath = v
	}
	if k.Exists("database.debug") {
		cfg.DatabaseDebug = k.Bool("database.debug")
	}
	if v := k.String("server.host"); v != "" {
		cfg.ServerHost = v
	}
	if v := k.Int("server.port"); v != 0 {
		cfg.ServerPort = v
	}
	if v := k.Int("worker.processes"); v != 0 {
		cfg.WorkerProcesses = v
	}
	if k.Exists("scan.reconcile") {
		cfg.ScanReconcile = k.Bool("scan.reconcile")
	}

	return nil
}
