// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for wire-format encoders
package encode

import "github.com/liveplanting/liveplanting-go/pkg/audio"

// Encoder encodes a block to its wire representation
type Encoder interface {
	// Encode converts a block to encoded audio data
	Encode(block audio.Block) ([]byte, error)
}
