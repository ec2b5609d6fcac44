// ABOUTME: Playback scheduling package
// ABOUTME: Places decoded blocks on a device clock and smooths block seams
// Package player schedules decoded audio blocks onto an output clock.
//
// Frames carry no timestamps, so the Scheduler keeps its own virtual
// timeline: the first block plays a fixed lookahead after Start and every
// later block starts exactly where the previous one ends. When the device
// clock overtakes the timeline (an underrun) the timeline is rebased a
// recovery interval ahead of the device.
//
// Example:
//
//	sched := player.NewScheduler(out, player.DefaultConfig())
//	sched.Start()
//	at, err := sched.Schedule(block)
package player
