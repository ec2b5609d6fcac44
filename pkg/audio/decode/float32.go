// ABOUTME: Float32 frame decoder
// ABOUTME: De-interleaves little-endian float32 stereo frames into blocks
package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// Float32Decoder decodes headerless interleaved float32 frames
type Float32Decoder struct {
	channels int
}

// NewFloat32 creates a decoder for the given format.
// Only stereo is accepted since the wire carries no channel count.
func NewFloat32(format audio.Format) (Decoder, error) {
	if format.Channels != audio.Channels {
		return nil, fmt.Errorf("unsupported channel count: %d (supported: %d)", format.Channels, audio.Channels)
	}

	return &Float32Decoder{
		channels: format.Channels,
	}, nil
}

// Decode converts interleaved float32 bytes to a stereo block.
// The whole block is rejected on a partial frame or any NaN/Inf sample.
func (d *Float32Decoder) Decode(data []byte) (audio.Block, error) {
	frameSize := d.channels * audio.BytesPerSample
	if len(data)%frameSize != 0 {
		return audio.Block{}, fmt.Errorf("%w: %d bytes (frame size %d)", ErrFrameLength, len(data), frameSize)
	}

	frames := len(data) / frameSize
	chans := make([][]float32, d.channels)
	for ch := range chans {
		chans[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < d.channels; ch++ {
			off := (i*d.channels + ch) * audio.BytesPerSample
			bits := binary.LittleEndian.Uint32(data[off:])
			v := math.Float32frombits(bits)
			if !isFinite(v) {
				return audio.Block{}, fmt.Errorf("%w: frame %d channel %d", ErrNonFinite, i, ch)
			}
			chans[ch][i] = v
		}
	}

	return audio.NewBlock(chans...)
}

// DecodeMono converts a headerless little-endian float32 mono buffer, as sent
// on the visualization socket, to samples.
func DecodeMono(data []byte) ([]float32, error) {
	if len(data)%audio.BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes (sample size %d)", ErrFrameLength, len(data), audio.BytesPerSample)
	}

	samples := make([]float32, len(data)/audio.BytesPerSample)
	for i := range samples {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*audio.BytesPerSample:]))
		if !isFinite(v) {
			return nil, fmt.Errorf("%w: sample %d", ErrNonFinite, i)
		}
		samples[i] = v
	}
	return samples, nil
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
