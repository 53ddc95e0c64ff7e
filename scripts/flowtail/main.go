package main

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"
	"NetSentry/internal/sink"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

func main() {
	url := flag.String("url", nats.DefaultURL, "NATS server URL")
	subject := flag.String("subject", "netsentry.flows", "Subject the nats sink publishes on")
	flag.Parse()

	sub, err := sink.NewSubscriber(config.NATSConfig{URL: *url, Subject: *subject})
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.Start(func(rec model.Record) {
		fmt.Printf("%s %-45s %-8s %.3f %s\n",
			rec.Timestamp.Format("15:04:05.000"), rec.FlowID, rec.Action, rec.Probability, rec.Label)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}
