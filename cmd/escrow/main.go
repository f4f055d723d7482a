package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	escrowcmd "github.com/louisbranch/escrow/internal/cmd/escrow"
)

// main starts the escrow gRPC service and, with the payout gateway, its webhook.
func main() {
	cfg, err := escrowcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[ESCROW] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := escrowcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
