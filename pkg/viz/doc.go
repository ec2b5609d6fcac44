// ABOUTME: Waveform visualization feed package
// ABOUTME: Fixed-size sample ring between the audio path and the renderer
// Package viz holds the most recent audio samples for waveform display.
//
// The audio path writes with Ingest and never waits; the renderer reads a
// full Snapshot once per display frame.
package viz
