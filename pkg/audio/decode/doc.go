// ABOUTME: Audio decoder package for the installation wire format
// ABOUTME: Provides the Decoder interface and the float32 stereo decoder
// Package decode turns raw binary WebSocket messages into audio blocks.
//
// The wire format is headerless little-endian float32, interleaved stereo
// ([L0, R0, L1, R1, ...]). Decoding is bit-preserving: no resampling and no
// clipping. Buffers that are not a whole number of frames, or that contain
// NaN/Inf, are rejected whole with ErrFrameLength or ErrNonFinite.
//
// Example:
//
//	decoder, err := decode.NewFloat32(audio.Format{SampleRate: 48000, Channels: 2})
//	block, err := decoder.Decode(message)
package decode
