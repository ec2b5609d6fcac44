// ABOUTME: Audio encoder package for the installation wire format
// ABOUTME: Provides the Encoder interface and the float32 stereo encoder
// Package encode is the inverse of package decode: it produces the headerless
// interleaved float32 frames the installation server sends. The client only
// needs it for the loopback test server and round-trip tests.
//
// Example:
//
//	encoder, err := encode.NewFloat32(audio.Format{SampleRate: 48000, Channels: 2})
//	data, err := encoder.Encode(block)
package encode
