// ABOUTME: Live Planting control message definitions
// ABOUTME: Outbound commands and the closed set of inbound status replies
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned when a reply carries a status this client
// does not understand
var ErrUnknownStatus = errors.New("unknown status")

// Command is an outbound control command
type Command string

const (
	CommandStartAudio   Command = "start_audio"
	CommandStopAudio    Command = "stop_audio"
	CommandStartRec     Command = "start_rec"
	CommandStopRec      Command = "stop_rec"
	CommandClearLoops   Command = "clear_loops"
	CommandClearAmbient Command = "clear_ambient"
)

// Valid reports whether c is one of the known commands
func (c Command) Valid() bool {
	switch c {
	case CommandStartAudio, CommandStopAudio, CommandStartRec,
		CommandStopRec, CommandClearLoops, CommandClearAmbient:
		return true
	}
	return false
}

// Endpoint returns the HTTP path the command is posted to
func (c Command) Endpoint() string {
	switch c {
	case CommandStartAudio:
		return "/start"
	case CommandStopAudio:
		return "/stop"
	default:
		return "/" + string(c)
	}
}

// CommandMessage is the JSON envelope for outbound commands
type CommandMessage struct {
	Command Command `json:"command"`
}

// Status values sent by the server
const (
	StatusRecording      = "recording"
	StatusStopped        = "stopped"
	StatusStarted        = "started"
	StatusAudioStarted   = "audio_started"
	StatusAudioStopped   = "audio_stopped"
	StatusAmbientCleared = "ambient_cleared"
	StatusLoopsCleared   = "loops_cleared"
)

// Status is an inbound control reply. The set of implementations is closed.
type Status interface {
	// Name returns the wire value of the status field
	Name() string
	// Detail returns the optional human-readable message
	Detail() string
	isStatus()
}

// RecordingStatus reports the server's recording flag
type RecordingStatus struct {
	Recording bool
	Message   string
}

// Stopped acknowledges a stop. Recording is set when the server also
// reports its recording flag (the reply to stop_rec).
type Stopped struct {
	Recording *bool
	Message   string
}

// Started acknowledges POST /start
type Started struct{ Message string }

// AudioStarted acknowledges start_audio on a streaming server
type AudioStarted struct{ Message string }

// AudioStopped acknowledges stop_audio on a streaming server
type AudioStopped struct{ Message string }

// AmbientCleared acknowledges clear_ambient
type AmbientCleared struct{ Message string }

// LoopsCleared acknowledges clear_loops
type LoopsCleared struct{ Message string }

func (RecordingStatus) Name() string { return StatusRecording }
func (Stopped) Name() string         { return StatusStopped }
func (Started) Name() string         { return StatusStarted }
func (AudioStarted) Name() string    { return StatusAudioStarted }
func (AudioStopped) Name() string    { return StatusAudioStopped }
func (AmbientCleared) Name() string  { return StatusAmbientCleared }
func (LoopsCleared) Name() string    { return StatusLoopsCleared }

func (s RecordingStatus) Detail() string { return s.Message }
func (s Stopped) Detail() string         { return s.Message }
func (s Started) Detail() string         { return s.Message }
func (s AudioStarted) Detail() string    { return s.Message }
func (s AudioStopped) Detail() string    { return s.Message }
func (s AmbientCleared) Detail() string  { return s.Message }
func (s LoopsCleared) Detail() string    { return s.Message }

func (RecordingStatus) isStatus() {}
func (Stopped) isStatus()         {}
func (Started) isStatus()         {}
func (AudioStarted) isStatus()    {}
func (AudioStopped) isStatus()    {}
func (AmbientCleared) isStatus()  {}
func (LoopsCleared) isStatus()    {}

// statusMessage is the wire shape shared by every status reply
type statusMessage struct {
	Status    string `json:"status"`
	Recording *bool  `json:"recording,omitempty"`
	Message   string `json:"message,omitempty"`
}

// DecodeStatus parses a JSON status reply
func DecodeStatus(data []byte) (Status, error) {
	var msg statusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}

	switch msg.Status {
	case StatusRecording:
		if msg.Recording == nil {
			return nil, fmt.Errorf("status %q missing recording field", msg.Status)
		}
		return RecordingStatus{Recording: *msg.Recording, Message: msg.Message}, nil
	case StatusStopped:
		return Stopped{Recording: msg.Recording, Message: msg.Message}, nil
	case StatusStarted:
		return Started{Message: msg.Message}, nil
	case StatusAudioStarted:
		return AudioStarted{Message: msg.Message}, nil
	case StatusAudioStopped:
		return AudioStopped{Message: msg.Message}, nil
	case StatusAmbientCleared:
		return AmbientCleared{Message: msg.Message}, nil
	case StatusLoopsCleared:
		return LoopsCleared{Message: msg.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, msg.Status)
	}
}

// EncodeStatus renders a status reply in wire form
func EncodeStatus(s Status) ([]byte, error) {
	msg := statusMessage{Status: s.Name(), Message: s.Detail()}
	switch v := s.(type) {
	case RecordingStatus:
		rec := v.Recording
		msg.Recording = &rec
	case Stopped:
		msg.Recording = v.Recording
	}
	return json.Marshal(msg)
}
