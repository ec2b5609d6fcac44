// ABOUTME: Float32 frame encoder
// ABOUTME: Interleaves stereo blocks into little-endian float32 bytes
package encode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// Float32Encoder produces headerless interleaved float32 frames
type Float32Encoder struct {
	channels int
}

// NewFloat32 creates a new float32 encoder
func NewFloat32(format audio.Format) (Encoder, error) {
	if format.Channels != audio.Channels {
		return nil, fmt.Errorf("unsupported channel count: %d (supported: %d)", format.Channels, audio.Channels)
	}

	return &Float32Encoder{
		channels: format.Channels,
	}, nil
}

// Encode interleaves the block channels as [L0, R0, L1, R1, ...]
func (e *Float32Encoder) Encode(block audio.Block) ([]byte, error) {
	if block.ChannelCount() != e.channels {
		return nil, fmt.Errorf("block has %d channels, encoder expects %d", block.ChannelCount(), e.channels)
	}

	return EncodeSamples(block.Interleave()), nil
}

// EncodeSamples writes raw float32 samples little-endian, as used for the
// mono visualization socket.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, len(samples)*audio.BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*audio.BytesPerSample:], math.Float32bits(s))
	}
	return out
}
