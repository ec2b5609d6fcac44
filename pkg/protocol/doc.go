// ABOUTME: Live Planting wire protocol package
// ABOUTME: Defines control messages and the WebSocket/HTTP transports
// Package protocol implements the Live Planting wire protocol.
//
// Audio arrives as headerless binary frames; control is JSON text in both
// directions: {"command": ...} out, {"status": ...} back. Two transports
// are provided: a WebSocket Client for streaming servers and an HTTPClient
// for servers that play audio locally and only take commands.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{URL: "ws://localhost:8765"})
//	client.OnBinary(func(data []byte) { ... })
//	err := client.Connect(ctx)
//	client.Send(protocol.CommandStartAudio)
package protocol
