// ABOUTME: Metrics hooks for the listener
// ABOUTME: Recorder receives pipeline events; the default discards them
package liveplanting

import "time"

// Recorder receives pipeline events for metrics
type Recorder interface {
	BlockReceived()
	BlockScheduled(bufferDepth time.Duration)
	BlockRejected(reason string)
	Underrun()
	CommandSent(command string, err error)
	ConnectionChanged(state string)
}

type nopRecorder struct{}

func (nopRecorder) BlockReceived()               {}
func (nopRecorder) BlockScheduled(time.Duration) {}
func (nopRecorder) BlockRejected(string)         {}
func (nopRecorder) Underrun()                    {}
func (nopRecorder) CommandSent(string, error)    {}
func (nopRecorder) ConnectionChanged(string)     {}
