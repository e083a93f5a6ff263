package main

import (
	"context"
	"flag"
	"log"

	"couchlog/internal/config"
	"couchlog/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: *logLevel,
	}); err != nil {
		log.Fatalf("couchlogd: %v", err)
	}
}
