// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/kinematic_computer/internal/app"
	"github.com/relabs-tech/kinematic_computer/internal/config"
	"github.com/relabs-tech/kinematic_computer/internal/pose"
)

func main() {
	configPath := flag.String("config", "./kinematic_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting kinematic-computer pipeline (devices → metrics → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	client, err := app.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDPipeline)
	if err != nil {
		log.Fatalf("MQTT connect error: %v", err)
	}
	defer client.Disconnect(250)

	hub := app.NewHub(cfg.IngestChannelBuffer)

	pipeline, err := app.NewPipeline(cfg, hub, client, pose.NewMockEstimator(float64(cfg.TargetRateHz)))
	if err != nil {
		log.Fatalf("pipeline init error: %v", err)
	}

	go func() {
		if err := app.RunIngest(cfg.IngestListenAddr, hub); err != nil {
			log.Fatalf("ingest server error: %v", err)
		}
	}()
	go func() {
		if err := app.RunWeb(cfg.WebServerPort, pipeline); err != nil {
			log.Fatalf("web server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline.Run(ctx)
}
