package main

import (
	"NetSentry/internal/api"
	"NetSentry/internal/classifier"
	"NetSentry/internal/config"
	"NetSentry/internal/engine/manager"
	"NetSentry/internal/factory"
	"NetSentry/internal/logging"
	"NetSentry/internal/metrics"
	"NetSentry/internal/model"
	_ "NetSentry/internal/sink"    // Registers record sinks
	_ "NetSentry/pkg/pcap/libpcap" // Registers the libpcap reader backend
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var clf model.Classifier
	if cfg.Manager.Classify {
		c, err := classifier.New(cfg.Classifier.Addr, cfg.ClassifierTimeout())
		if err != nil {
			log.Fatalf("Failed to create classifier client: %v", err)
		}
		defer c.Close()
		clf = c
	}

	writers, err := factory.CreateWriters(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	managerImpl, err := manager.NewManager(cfg, clf, writers, metrics.New(reg))
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}
	defer managerImpl.Close()

	// Start HTTP server
	server := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           api.NewRouter(api.NewAPIHandler(managerImpl, cfg.API.CaptureRoot), reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("API server starting on %s, serving captures from %s", server.Addr, cfg.API.CaptureRoot)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}
