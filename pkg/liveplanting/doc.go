// ABOUTME: High-level Live Planting listener API
// ABOUTME: Wires transport, decoding, scheduling and the waveform feed together
// Package liveplanting is the main entry point for listening to a Live
// Planting installation.
//
// A Player connects to the audio server, schedules every received frame
// gaplessly on the local output device and keeps a waveform feed for the
// UI. It also forwards the installation's transport controls: start, stop,
// recording and clearing loops or ambience.
//
// Two server variants are supported:
//   - ModeStream: audio streams to this client over a WebSocket
//   - ModeHTTP: the server plays audio itself; this client posts commands
//     and optionally follows a visualization socket
//
// Example:
//
//	p, err := liveplanting.NewPlayer(liveplanting.PlayerConfig{
//	    ServerURL: "ws://localhost:8765",
//	})
//	err = p.Start(ctx)
//	err = p.ToggleRecording()
//	p.Stop()
package liveplanting
