package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v2"

	qhttp "heartguard/http"
	"heartguard/ml"
	"heartguard/monitoring"
	"heartguard/predict"
	"heartguard/store"
)

type Config struct {
	Http struct {
		Port           int   `yaml:"port"`
		TimeoutSeconds int   `yaml:"timeout_seconds"`
		MaxUploadMB    int64 `yaml:"max_upload_mb"`
	} `yaml:"http"`
	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`
	Results struct {
		Path      string `yaml:"path"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"results"`
	Log LogConfig `yaml:"log"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Set up logging
	closeLogging := setupLogging(config.Log)
	defer closeLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Load the model artifact. A failed load keeps the service up;
	// prediction endpoints report 503 until a restart with a good
	// artifact.
	handle, err := ml.Load(config.Model.Path)
	if err != nil {
		log.Printf("Model load failed, serving in degraded mode: %v", err)
	} else {
		qhttp.SetModel(handle)
		qhttp.SetScorer(predict.NewPredictor(handle))
		if err := ml.WatchArtifact(ctx, config.Model.Path); err != nil {
			log.Printf("Artifact watcher unavailable: %v", err)
		}
	}

	// 4. Open the result store
	resultStore, err := store.Open(config.Results.Path, config.Results.CacheSize)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}
	defer resultStore.Close()
	qhttp.SetResultStore(resultStore)

	// 5. Start the monitoring hub
	hub := monitoring.NewHub()
	go hub.Start()
	defer hub.Stop()
	qhttp.SetMonitor(hub)

	// 6. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds != 0 {
		serverConfig.Timeout = time.Duration(config.Http.TimeoutSeconds) * time.Second
	}
	if config.Http.MaxUploadMB != 0 {
		serverConfig.MaxUploadBytes = config.Http.MaxUploadMB << 20
	}

	server := qhttp.NewServer(serverConfig)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 7. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	if err := server.Stop(); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
