// ABOUTME: Tests for the playback scheduler
// ABOUTME: Tests contiguous scheduling, underrun recovery and stop
package player

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

const epsilon = 1e-9

func TestScheduleFirstBlocksAt48k(t *testing.T) {
	sink := newFakeSink(48000)
	sink.now = 2.0
	sched := NewScheduler(sink, DefaultConfig())
	sched.Start()

	first, err := sched.Schedule(audio.Silence(2048))
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	second, err := sched.Schedule(audio.Silence(2048))
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	if math.Abs(first-2.15) > epsilon {
		t.Errorf("expected first block at 2.15, got %v", first)
	}
	want := first + 2048.0/48000.0
	if math.Abs(second-want) > epsilon {
		t.Errorf("expected second block at %v, got %v", want, second)
	}
}

func TestScheduleContiguous(t *testing.T) {
	sink := newFakeSink(44100)
	sched := NewScheduler(sink, Config{Lookahead: 200 * time.Millisecond})
	sched.Start()

	sizes := []int{512, 1024, 2048, 1, 4096, 333}
	expected := 0.2
	for i, frames := range sizes {
		at, err := sched.Schedule(audio.Silence(frames))
		if err != nil {
			t.Fatalf("block %d: schedule failed: %v", i, err)
		}
		if math.Abs(at-expected) > epsilon {
			t.Errorf("block %d: expected start %v, got %v", i, expected, at)
		}
		expected += float64(frames) / 44100

		// The device keeps playing but never catches up
		sink.advance(float64(frames) / 44100 / 2)
	}

	if got := sched.Stats().Underruns; got != 0 {
		t.Errorf("expected no underruns, got %d", got)
	}
	if got := sched.Stats().Blocks; got != int64(len(sizes)) {
		t.Errorf("expected %d blocks, got %d", len(sizes), got)
	}
}

func TestScheduleUnderrunRecovery(t *testing.T) {
	sink := newFakeSink(48000)
	sched := NewScheduler(sink, DefaultConfig())
	sched.Start()

	if _, err := sched.Schedule(stereo(t, 480, 0.5)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if sched.TailLen() == 0 {
		t.Fatal("expected a crossfade tail after the first block")
	}

	// Network stall: the device runs past everything scheduled
	sink.advance(1.0)

	at, err := sched.Schedule(stereo(t, 480, 0.5))
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	if math.Abs(at-1.3) > epsilon {
		t.Errorf("expected recovery at now+0.3 = 1.3, got %v", at)
	}
	if got := sched.Stats().Underruns; got != 1 {
		t.Errorf("expected 1 underrun, got %d", got)
	}

	// Tail was cleared, so the block passed through unblended
	calls := sink.scheduled()
	if got := calls[1].block.Channel(0)[0]; got != 0.5 {
		t.Errorf("expected first sample unblended after underrun, got %v", got)
	}
}

func TestScheduleBeforeStart(t *testing.T) {
	sched := NewScheduler(newFakeSink(48000), DefaultConfig())

	if _, err := sched.Schedule(audio.Silence(16)); !errors.Is(err, ErrNotScheduling) {
		t.Errorf("expected ErrNotScheduling, got %v", err)
	}
	if sched.State() != StateIdle {
		t.Errorf("expected idle, got %s", sched.State())
	}
}

func TestStopRejectsBlocks(t *testing.T) {
	sink := newFakeSink(48000)
	sched := NewScheduler(sink, DefaultConfig())
	sched.Start()

	if _, err := sched.Schedule(stereo(t, 256, 0.1)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	sched.Stop()

	if sink.flushes != 1 {
		t.Errorf("expected sink to be flushed once, got %d", sink.flushes)
	}
	if sched.TailLen() != 0 {
		t.Error("expected tail cleared on stop")
	}
	if _, err := sched.Schedule(stereo(t, 256, 0.1)); !errors.Is(err, ErrNotScheduling) {
		t.Errorf("expected ErrNotScheduling after stop, got %v", err)
	}
	if len(sink.scheduled()) != 1 {
		t.Errorf("expected no blocks scheduled after stop, got %d", len(sink.scheduled()))
	}
	if sched.BufferDepth() != 0 {
		t.Errorf("expected zero buffer depth after stop, got %v", sched.BufferDepth())
	}

	// Restartable
	sink.advance(5)
	sched.Start()
	at, err := sched.Schedule(stereo(t, 256, 0.1))
	if err != nil {
		t.Fatalf("schedule after restart failed: %v", err)
	}
	if math.Abs(at-5.15) > epsilon {
		t.Errorf("expected restart at 5.15, got %v", at)
	}
	if sched.Stats().Blocks != 1 {
		t.Errorf("expected block counter reset, got %d", sched.Stats().Blocks)
	}
}

func TestScheduleEmptyBlock(t *testing.T) {
	sink := newFakeSink(48000)
	sched := NewScheduler(sink, DefaultConfig())
	sched.Start()

	before := sched.NextPlayTime()
	if _, err := sched.Schedule(audio.Silence(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.NextPlayTime() != before {
		t.Error("empty block must not advance the timeline")
	}
	if len(sink.scheduled()) != 0 {
		t.Error("empty block must not reach the sink")
	}
}

func TestBufferDepth(t *testing.T) {
	sink := newFakeSink(1000)
	sched := NewScheduler(sink, Config{Lookahead: 150 * time.Millisecond})
	sched.Start()

	sched.Schedule(audio.Silence(100))
	if got := sched.BufferDepth(); (got - 250*time.Millisecond).Abs() > time.Microsecond {
		t.Errorf("expected 250ms buffered, got %v", got)
	}

	sink.advance(0.5)
	if got := sched.BufferDepth(); got != 0 {
		t.Errorf("expected 0 after underrun, got %v", got)
	}
}

func TestNewSchedulerDefaults(t *testing.T) {
	sched := NewScheduler(newFakeSink(48000), Config{})
	cfg := sched.Config()

	if cfg.Lookahead != 150*time.Millisecond {
		t.Errorf("expected default lookahead 150ms, got %v", cfg.Lookahead)
	}
	if cfg.RecoveryBuffer != 300*time.Millisecond {
		t.Errorf("expected default recovery 300ms, got %v", cfg.RecoveryBuffer)
	}
	if cfg.UnderrunLogEvery != 50 {
		t.Errorf("expected underrun log interval 50, got %d", cfg.UnderrunLogEvery)
	}
}

func TestScheduleStaysOnWholeFrames(t *testing.T) {
	sink := newFakeSink(44100)
	sink.now = 0.5
	sched := NewScheduler(sink, Config{
		Lookahead:      155 * time.Millisecond, // 6835.5 frames
		RecoveryBuffer: 345 * time.Millisecond,
	})
	sched.Start()

	var prev int64 = -1
	for i := 0; i < 200; i++ {
		at, err := sched.Schedule(stereo(t, 2048, 0.5))
		if err != nil {
			t.Fatalf("schedule %d failed: %v", i, err)
		}

		pos := at * 44100
		frame := int64(math.Round(pos))
		if math.Abs(pos-float64(frame)) > 1e-6 {
			t.Fatalf("block %d starts off the frame grid: %v frames", i, pos)
		}
		if prev >= 0 && frame-prev != 2048 {
			t.Fatalf("block %d starts %d frames after the previous one, want 2048", i, frame-prev)
		}
		prev = frame
	}
}

func TestFailedScheduleClearsTail(t *testing.T) {
	sink := newFakeSink(48000)
	sched := NewScheduler(sink, DefaultConfig())
	sched.Start()

	if _, err := sched.Schedule(stereo(t, 480, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.TailLen() == 0 {
		t.Fatal("expected a crossfade tail after the first block")
	}
	before := sched.NextPlayTime()

	sink.setFail(errors.New("device gone"))
	if _, err := sched.Schedule(stereo(t, 480, -1)); err == nil {
		t.Fatal("expected schedule error")
	}
	if sched.TailLen() != 0 {
		t.Errorf("expected tail cleared after failed schedule, got %d frames", sched.TailLen())
	}
	if sched.NextPlayTime() != before {
		t.Errorf("failed block should not advance the schedule: %v -> %v", before, sched.NextPlayTime())
	}

	sink.setFail(nil)
	if _, err := sched.Schedule(stereo(t, 480, 0.25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := sink.scheduled()
	if got := calls[len(calls)-1].block.Channel(0)[0]; got != 0.25 {
		t.Errorf("expected block after failure to pass through unblended, got %v", got)
	}
}
