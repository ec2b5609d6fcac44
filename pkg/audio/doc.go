// ABOUTME: Audio fundamentals package providing core types
// ABOUTME: Defines Format and the immutable stereo Block
// Package audio provides the fundamental audio types shared by the decoder,
// the scheduler and the output devices.
//
//   - Format: sample rate and channel count of a stream
//   - Block: one decoded, de-interleaved unit of float32 samples
//
// Samples are float32 in [-1.0, 1.0]. The wire layout is interleaved
// little-endian float32 stereo with no header (FrameSize bytes per frame).
//
// Example:
//
//	block, err := audio.NewBlock(left, right)
//	seconds := block.Duration(48000)
package audio
