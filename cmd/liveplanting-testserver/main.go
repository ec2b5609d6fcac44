// ABOUTME: Entry point for the Live Planting loopback server
// ABOUTME: Serves a test tone over WebSocket and answers transport commands
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/liveplanting/liveplanting-go/internal/testserver"
)

var (
	port        = flag.Int("port", 8765, "HTTP and WebSocket port")
	name        = flag.String("name", "", "Server friendly name (default: hostname-liveplanting)")
	logFile     = flag.String("log-file", "liveplanting-testserver.log", "Log file path")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	autoStart   = flag.Bool("auto-start", false, "Stream to clients as soon as they connect")
	blockFrames = flag.Int("block-frames", 2048, "Frames per binary message")
	frequency   = flag.Float64("frequency", 440, "Test tone frequency in Hz")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-liveplanting", hostname)
	}

	log.Printf("Starting Live Planting test server: %s on port %d", serverName, *port)
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	srv, err := testserver.New(testserver.Config{
		Port:        *port,
		Name:        serverName,
		EnableMDNS:  !*noMDNS,
		AutoStart:   *autoStart,
		BlockFrames: *blockFrames,
		Frequency:   *frequency,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
