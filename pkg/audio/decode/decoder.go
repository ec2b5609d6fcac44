// ABOUTME: Decoder interface definition
// ABOUTME: Common interface and rejection errors for frame decoders
package decode

import (
	"errors"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

var (
	// ErrFrameLength is returned when a buffer does not hold a whole number of frames
	ErrFrameLength = errors.New("frame length is not a multiple of the frame size")

	// ErrNonFinite is returned when a buffer contains NaN or Inf samples
	ErrNonFinite = errors.New("frame contains non-finite samples")
)

// Decoder decodes one binary message into a block
type Decoder interface {
	// Decode converts a raw message to a de-interleaved block.
	// A rejected message returns an error and an empty block.
	Decode(data []byte) (audio.Block, error)
}
