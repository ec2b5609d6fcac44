// ABOUTME: Tests for float32 frame decoder
// ABOUTME: Tests de-interleaving, round-trips and frame rejection
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
	"github.com/liveplanting/liveplanting-go/pkg/audio/encode"
)

func newTestDecoder(t *testing.T) Decoder {
	t.Helper()
	decoder, err := NewFloat32(audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	return decoder
}

func floatBytes(values ...float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestNewFloat32_UnsupportedChannels(t *testing.T) {
	decoder, err := NewFloat32(audio.Format{SampleRate: 48000, Channels: 6})
	if err == nil {
		t.Fatal("expected error for 6 channels, got nil")
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil")
	}
}

func TestFloat32Decode_Deinterleave(t *testing.T) {
	decoder := newTestDecoder(t)

	block, err := decoder.Decode(floatBytes(0.1, -0.1, 0.2, -0.2, 0.3, -0.3))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if block.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", block.Frames())
	}

	left := []float32{0.1, 0.2, 0.3}
	right := []float32{-0.1, -0.2, -0.3}
	for i := 0; i < 3; i++ {
		if block.Channel(0)[i] != left[i] {
			t.Errorf("left[%d]: expected %v, got %v", i, left[i], block.Channel(0)[i])
		}
		if block.Channel(1)[i] != right[i] {
			t.Errorf("right[%d]: expected %v, got %v", i, right[i], block.Channel(1)[i])
		}
	}
}

func TestFloat32Decode_RoundTrip(t *testing.T) {
	decoder := newTestDecoder(t)
	encoder, err := encode.NewFloat32(audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for _, frames := range []int{0, 1, 2, 255, 2048} {
		values := make([]float32, frames*2)
		for i := range values {
			values[i] = rng.Float32()*2 - 1
		}
		input := floatBytes(values...)

		block, err := decoder.Decode(input)
		if err != nil {
			t.Fatalf("%d frames: decode failed: %v", frames, err)
		}

		output, err := encoder.Encode(block)
		if err != nil {
			t.Fatalf("%d frames: encode failed: %v", frames, err)
		}

		if !bytes.Equal(input, output) {
			t.Errorf("%d frames: round trip changed the buffer", frames)
		}
	}
}

func TestFloat32Decode_OutOfRangeNotClipped(t *testing.T) {
	decoder := newTestDecoder(t)

	block, err := decoder.Decode(floatBytes(1.5, -3))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if block.Channel(0)[0] != 1.5 || block.Channel(1)[0] != -3 {
		t.Errorf("expected samples to pass through unclipped, got %v %v",
			block.Channel(0)[0], block.Channel(1)[0])
	}
}

func TestFloat32Decode_RejectsPartialFrames(t *testing.T) {
	decoder := newTestDecoder(t)

	for _, n := range []int{1, 3, 4, 7, 12, 2049} {
		block, err := decoder.Decode(make([]byte, n))
		if !errors.Is(err, ErrFrameLength) {
			t.Errorf("%d bytes: expected ErrFrameLength, got %v", n, err)
		}
		if !block.IsEmpty() {
			t.Errorf("%d bytes: expected no block", n)
		}
	}
}

func TestFloat32Decode_RejectsNonFinite(t *testing.T) {
	decoder := newTestDecoder(t)

	tests := []struct {
		name  string
		value float32
	}{
		{"NaN", float32(math.NaN())},
		{"+Inf", float32(math.Inf(1))},
		{"-Inf", float32(math.Inf(-1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := decoder.Decode(floatBytes(0, 0, 0.5, tt.value, 0, 0))
			if !errors.Is(err, ErrNonFinite) {
				t.Fatalf("expected ErrNonFinite, got %v", err)
			}
			if !block.IsEmpty() {
				t.Error("expected the whole block to be discarded")
			}
		})
	}
}

func TestDecodeMono(t *testing.T) {
	samples, err := DecodeMono(floatBytes(0.25, -0.5, 1))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := []float32{0.25, -0.5, 1}
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], samples[i])
		}
	}

	if _, err := DecodeMono([]byte{1, 2, 3}); !errors.Is(err, ErrFrameLength) {
		t.Errorf("expected ErrFrameLength, got %v", err)
	}
	if _, err := DecodeMono(floatBytes(float32(math.NaN()))); !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
}
