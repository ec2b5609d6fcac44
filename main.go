// ABOUTME: Entry point for the Live Planting listener
// ABOUTME: Parses CLI flags and config, then runs the player with a TUI or streaming logs
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/liveplanting/liveplanting-go/internal/config"
	"github.com/liveplanting/liveplanting-go/internal/discovery"
	"github.com/liveplanting/liveplanting-go/internal/metrics"
	"github.com/liveplanting/liveplanting-go/internal/ui"
	"github.com/liveplanting/liveplanting-go/internal/version"
	"github.com/liveplanting/liveplanting-go/pkg/audio/output"
	"github.com/liveplanting/liveplanting-go/pkg/liveplanting"
	"github.com/liveplanting/liveplanting-go/pkg/protocol"
)

const discoveryTimeout = 5 * time.Second

var (
	configPath  = flag.String("config", "", "YAML config file")
	serverURL   = flag.String("server", "", "WebSocket audio endpoint (skip mDNS)")
	mode        = flag.String("mode", "stream", "Server variant: stream or http")
	httpURL     = flag.String("http-url", "", "Command base URL for http mode")
	vizURL      = flag.String("viz-url", "", "Visualization socket for http mode")
	lookaheadMs = flag.Int("lookahead-ms", 150, "Scheduling lookahead in milliseconds (150-500)")
	recoveryMs  = flag.Int("recovery-ms", 300, "Underrun recovery buffer in milliseconds")
	crossfadeMs = flag.Float64("crossfade-ms", 2, "Block boundary crossfade in milliseconds (0 disables)")
	backend     = flag.String("output", "malgo", "Audio output: malgo, oto or portaudio")
	logFile     = flag.String("log-file", "liveplanting.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	reconnect   = flag.Bool("reconnect", false, "Redial with backoff when the stream drops")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

func main() {
	flag.Parse()

	if *showVersion {
		color.New(color.FgCyan).Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	useTUI := !cfg.Logging.NoTUI

	// Set up logging
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	serverName := resolveServer(cfg)

	out, err := output.New(cfg.Output.Backend)
	if err != nil {
		log.Fatalf("Output error: %v", err)
	}

	var recorder *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		recorder = metrics.New()
		go serveMetrics(cfg.Metrics.Addr, recorder)
	}

	// TUI setup
	var tuiProg *tea.Program
	ctrl := ui.NewControls()

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	playerConfig := cfg.PlayerConfig()
	playerConfig.Output = out
	if recorder != nil {
		playerConfig.Metrics = recorder
	}
	playerConfig.OnStateChange = func(status liveplanting.Status) {
		updateTUI(ui.StatusMsg{
			Connection: status.Connection.String(),
			ServerName: serverName,
			Mode:       string(status.Mode),
			Running:    status.Running,
			Recording:  status.Recording,
			SampleRate: status.SampleRate,
			LastStatus: status.LastStatus,
		})
		if !useTUI {
			printStatus(status)
		}
	}

	player, err := liveplanting.NewPlayer(playerConfig)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	if useTUI {
		tuiProg, err = ui.Run(ctrl, player.Feed())
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		go statsUpdateLoop(player, updateTUI)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go handleActions(ctx, player, ctrl, updateTUI)

	if useTUI {
		// Start from the action loop so the keys stay live while dialing
		ctrl.Actions <- ui.ActionStart
	} else if err := player.Start(ctx); err != nil {
		log.Fatalf("Start failed: %v", err)
	}

	select {
	case <-ctrl.Quit:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	}

	cancel()
	if err := player.Close(); err != nil {
		log.Printf("Error closing player: %v", err)
	}
	if tuiProg != nil {
		tuiProg.Quit()
	}

	log.Printf("Player stopped")
}

// loadConfig reads the optional file and applies flags set on the command line
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "server":
			cfg.Server.URL = *serverURL
		case "mode":
			cfg.Server.Mode = *mode
		case "http-url":
			cfg.Server.HTTPURL = *httpURL
		case "viz-url":
			cfg.Server.VizURL = *vizURL
		case "lookahead-ms":
			cfg.Playback.LookaheadMS = *lookaheadMs
		case "recovery-ms":
			cfg.Playback.RecoveryMS = *recoveryMs
		case "crossfade-ms":
			cfg.Playback.CrossfadeMS = *crossfadeMs
		case "output":
			cfg.Output.Backend = *backend
		case "log-file":
			cfg.Logging.File = *logFile
		case "no-tui":
			cfg.Logging.NoTUI = *noTUI
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "reconnect":
			cfg.Server.Reconnect = *reconnect
		}
	})

	return cfg, cfg.Validate()
}

// resolveServer browses mDNS when neither flags nor the config file name a
// server, and returns a display name for it
func resolveServer(cfg *config.Config) string {
	explicit := *configPath != ""
	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == "server" || fl.Name == "http-url" {
			explicit = true
		}
	})

	if explicit {
		if liveplanting.Mode(cfg.Server.Mode) == liveplanting.ModeHTTP {
			return cfg.Server.HTTPURL
		}
		return cfg.Server.URL
	}

	log.Printf("Starting server discovery...")
	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()

	server, err := discovery.Discover(ctx, discoveryTimeout)
	if err != nil {
		log.Printf("No server found (%v), using %s", err, cfg.Server.URL)
		return cfg.Server.URL
	}

	log.Printf("Discovered server %s at %s", server.Name, server.Addr())
	cfg.Server.URL = server.StreamURL()
	cfg.Server.HTTPURL = server.HTTPURL()
	if cfg.Server.VizURL == "" {
		cfg.Server.VizURL = server.VizURL()
	}
	return server.Name
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Metrics server error: %v", err)
	}
}

// handleActions runs transport controls requested from the TUI
func handleActions(ctx context.Context, player *liveplanting.Player, ctrl *ui.Controls, updateTUI func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case action := <-ctrl.Actions:
			log.Printf("Action: %s", action)

			var err error
			switch action {
			case ui.ActionStart:
				go func() {
					err := player.Start(ctx)
					if errors.Is(err, liveplanting.ErrStartCancelled) {
						return
					}
					if err != nil {
						log.Printf("start failed: %v", err)
						updateTUI(ui.ErrorMsg{Err: err})
					}
				}()
			case ui.ActionStop:
				err = player.Stop()
			case ui.ActionToggleRecording:
				err = player.ToggleRecording()
			case ui.ActionClearLoops:
				player.ClearLoops()
			case ui.ActionClearAmbience:
				player.ClearAmbience()
			}

			if err != nil {
				log.Printf("%s failed: %v", action, err)
				updateTUI(ui.ErrorMsg{Err: err})
			}
		}
	}
}

// statsUpdateLoop periodically updates TUI with playback statistics
func statsUpdateLoop(player *liveplanting.Player, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc uint64

	for {
		select {
		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc

		case <-ticker.C:
			stats := player.Stats()
			updateTUI(ui.StatsMsg{
				Received:    stats.Received,
				Scheduled:   stats.Scheduled,
				Rejected:    stats.Rejected,
				Underruns:   stats.Underruns,
				BufferDepth: stats.BufferDepth,
				Goroutines:  lastGoroutines,
				MemAlloc:    lastMemAlloc,
			})
		}
	}
}

// printStatus reports state changes in streaming-log mode
func printStatus(status liveplanting.Status) {
	c := yellow
	switch status.Connection {
	case protocol.StateConnected:
		c = green
	case protocol.StateError:
		c = red
	}

	c.Printf("[%s] %s", status.Mode, status.Connection)
	if status.SampleRate > 0 {
		c.Printf(" @ %d Hz", status.SampleRate)
	}
	if status.Recording {
		red.Print("  ● REC")
	}
	if status.LastStatus != "" {
		c.Printf("  (%s)", status.LastStatus)
	}
	c.Println()
}
