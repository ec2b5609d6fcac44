// ABOUTME: Audio output package for clock-scheduled playback
// ABOUTME: Provides the Output interface, the Timeline and device backends
// Package output plays blocks at positions on the device's own clock.
//
// Every backend pulls mixed frames from a Timeline. The Timeline advances its
// clock only as the device consumes frames, which makes Now the hardware clock
// the playback scheduler reads, and ScheduleAt the way it hands blocks over.
//
// Backends: Malgo (default), Oto, and PortAudio (build with -tags portaudio).
//
// Example:
//
//	out, err := output.New(output.BackendMalgo)
//	err = out.Open(48000, 2)
//	err = out.ScheduleAt(out.Now()+0.15, block)
package output
