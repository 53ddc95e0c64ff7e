package main

import (
	"NetSentry/internal/classifier"
	"NetSentry/internal/config"
	"NetSentry/internal/engine/manager"
	"NetSentry/internal/factory"
	"NetSentry/internal/logging"
	"NetSentry/internal/model"
	_ "NetSentry/internal/sink"    // Registers record sinks
	_ "NetSentry/pkg/pcap/libpcap" // Registers the libpcap reader backend
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	classify := flag.Bool("classify", false, "Send every flow to the classifier service")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config configs/config.yaml] [-classify] <capture.pcap>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *classify {
		cfg.Manager.Classify = true
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize modules
	var clf model.Classifier
	if cfg.Manager.Classify {
		if cfg.Classifier.Addr == "" {
			log.Fatalf("Classification requested but classifier.addr is not set")
		}
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

	managerImpl, err := manager.NewManager(cfg, clf, writers, nil)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}
	defer managerImpl.Close()
	log.Println("Manager initialized.")

	// 3. Process the captures, stopping early on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes := managerImpl.Run(ctx, flag.Args())

	// 4. One JSON document per capture on stdout
	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, out := range outcomes {
		if out.Result == nil {
			failed++
			enc.Encode(map[string]any{"capture": out.Path, "valid": false, "error": out.Err.Error()})
			continue
		}
		if !out.Result.Valid {
			failed++
		}
		enc.Encode(out.Result)
	}
	log.Printf("Shutdown complete, %d of %d captures failed.", failed, len(outcomes))
	if failed > 0 {
		os.Exit(2)
	}
}
