// ABOUTME: Tests for the playback timeline
// ABOUTME: Tests clock advance, block placement, mixing and flushing
package output

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

func constBlock(t *testing.T, frames int, left, right float32) audio.Block {
	t.Helper()
	l := make([]float32, frames)
	r := make([]float32, frames)
	for i := range l {
		l[i] = left
		r[i] = right
	}
	block, err := audio.NewBlock(l, r)
	if err != nil {
		t.Fatalf("failed to build block: %v", err)
	}
	return block
}

func TestTimelineClockAdvancesOnRender(t *testing.T) {
	tl := NewTimeline(1000, 2)

	if tl.Now() != 0 {
		t.Fatalf("expected clock 0, got %v", tl.Now())
	}

	tl.Render(make([]float32, 500*2))

	if tl.Now() != 0.5 {
		t.Errorf("expected clock 0.5s, got %v", tl.Now())
	}
}

func TestTimelinePlacesBlockAtFrame(t *testing.T) {
	tl := NewTimeline(1000, 2)

	// Block starts 4 frames in
	if err := tl.ScheduleAt(0.004, constBlock(t, 3, 0.5, -0.5)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	out := make([]float32, 10*2)
	tl.Render(out)

	for f := 0; f < 10; f++ {
		wantL, wantR := float32(0), float32(0)
		if f >= 4 && f < 7 {
			wantL, wantR = 0.5, -0.5
		}
		if out[f*2] != wantL || out[f*2+1] != wantR {
			t.Errorf("frame %d: expected (%v, %v), got (%v, %v)", f, wantL, wantR, out[f*2], out[f*2+1])
		}
	}

	if tl.Pending() != 0 {
		t.Errorf("expected finished block to be released, %d pending", tl.Pending())
	}
}

func TestTimelineBlockSpansRenders(t *testing.T) {
	tl := NewTimeline(1000, 2)
	_ = tl.ScheduleAt(0, constBlock(t, 6, 1, 1))

	first := make([]float32, 4*2)
	tl.Render(first)
	if tl.Pending() != 1 {
		t.Fatalf("expected block to remain pending, got %d", tl.Pending())
	}

	second := make([]float32, 4*2)
	tl.Render(second)

	if second[1*2] != 1 || second[2*2] != 0 {
		t.Errorf("expected block to end after frame 5, got %v", second)
	}
	if tl.Pending() != 0 {
		t.Errorf("expected no pending blocks, got %d", tl.Pending())
	}
}

func TestTimelineContiguousBlocksHaveNoGap(t *testing.T) {
	tl := NewTimeline(48000, 2)

	first := constBlock(t, 2048, 0.25, 0.25)
	start := 0.15
	_ = tl.ScheduleAt(start, first)
	_ = tl.ScheduleAt(start+first.Duration(48000), constBlock(t, 2048, 0.25, 0.25))

	out := make([]float32, 12000*2)
	tl.Render(out)

	begin := 7200 // 0.15s at 48kHz
	for f := begin; f < begin+4096; f++ {
		if out[f*2] != 0.25 {
			t.Fatalf("frame %d: expected 0.25, got %v (gap or overlap)", f, out[f*2])
		}
	}
	if out[(begin-1)*2] != 0 || out[(begin+4096)*2] != 0 {
		t.Error("expected silence outside the two blocks")
	}
}

func TestTimelineLateBlockSkipsPast(t *testing.T) {
	tl := NewTimeline(1000, 2)
	tl.Render(make([]float32, 10*2))

	// Starts 2 frames in the past
	_ = tl.ScheduleAt(0.008, constBlock(t, 4, 1, 1))

	out := make([]float32, 4*2)
	tl.Render(out)

	want := []float32{1, 1, 0, 0}
	for f, w := range want {
		if out[f*2] != w {
			t.Errorf("frame %d: expected %v, got %v", f, w, out[f*2])
		}
	}
}

func TestTimelineFlush(t *testing.T) {
	tl := NewTimeline(1000, 2)
	_ = tl.ScheduleAt(0, constBlock(t, 10, 1, 1))
	tl.Flush()

	out := make([]float32, 10*2)
	tl.Render(out)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d: expected silence after flush, got %v", i, s)
		}
	}
}

func TestTimelineRejectsChannelMismatch(t *testing.T) {
	tl := NewTimeline(1000, 2)
	mono, _ := audio.NewBlock([]float32{1, 2})
	if err := tl.ScheduleAt(0, mono); err == nil {
		t.Error("expected error for mono block on stereo timeline")
	}
}

func TestTimelineRead(t *testing.T) {
	tl := NewTimeline(1000, 2)
	_ = tl.ScheduleAt(0, constBlock(t, 2, 0.5, -0.5))

	buf := make([]byte, 2*audio.FrameSize+3)
	n, err := tl.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 2*audio.FrameSize {
		t.Fatalf("expected %d bytes, got %d", 2*audio.FrameSize, n)
	}

	got := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
	if got != -0.5 {
		t.Errorf("expected right sample -0.5, got %v", got)
	}

	tl.Close()
	if _, err := tl.Read(buf); err != io.EOF {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}
