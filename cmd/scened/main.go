package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/server"
)

// fileConfig is the on-disk shape of the server configuration.
type fileConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	TickRate          int           `yaml:"tick_rate"`
	AsyncLoadingMs    int           `yaml:"async_loading_ms"`
	ScenePath         string        `yaml:"scene_path"`
	ResourceDir       string        `yaml:"resource_dir"`
	ResourceLoader    int           `yaml:"resource_loaders"`
	SceneJSONInterval time.Duration `yaml:"scene_json_interval"`
	LogLevel          string        `yaml:"log_level"`
}

func loadConfig(path string) (server.Config, error) {
	cfg := server.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var fc fileConfig
	if err = yaml.Unmarshal(data, &fc); err != nil {
		return cfg, err
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.TickRate > 0 {
		cfg.TickRate = fc.TickRate
	}
	if fc.AsyncLoadingMs > 0 {
		cfg.AsyncLoadingMs = fc.AsyncLoadingMs
	}
	if fc.ScenePath != "" {
		cfg.ScenePath = fc.ScenePath
	}
	if fc.ResourceDir != "" {
		cfg.ResourceDir = fc.ResourceDir
	}
	if fc.ResourceLoader > 0 {
		cfg.ResourceLoader = fc.ResourceLoader
	}
	if fc.SceneJSONInterval > 0 {
		cfg.SceneJSONInterval = fc.SceneJSONInterval
	}
	switch fc.LogLevel {
	case "", "info":
		cfg.LogLevel = log.LevelInfo
	case "debug":
		cfg.LogLevel = log.LevelDebug
	case "warn":
		cfg.LogLevel = log.LevelWarn
	case "error":
		cfg.LogLevel = log.LevelError
	default:
		return cfg, fmt.Errorf("unknown log level %q", fc.LogLevel)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	listenAddr := flag.String("listen", "", "listen address, overrides the config file")
	scenePath := flag.String("scene", "", "binary scene to load at startup, overrides the config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *scenePath != "" {
		cfg.ScenePath = *scenePath
	}

	srv := server.New(cfg, log.New(cfg.LogLevel))

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if err = srv.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "Error starting server:", err)
		os.Exit(1)
	}

	<-stopCh
	if err = srv.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "Error stopping server:", err)
		os.Exit(1)
	}
}
