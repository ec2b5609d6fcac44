// ABOUTME: Audio output interface tests
// ABOUTME: Verifies backend selection and Output implementations
package output

import (
	"testing"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Malgo)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*PortAudio)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend   string
		expectErr bool
	}{
		{"", false},
		{BackendMalgo, false},
		{BackendOto, false},
		{BackendPortAudio, false},
		{"alsa", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			out, err := New(tt.backend)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out == nil {
				t.Fatal("expected output to be created")
			}
		})
	}
}

func TestUnopenedOutput(t *testing.T) {
	out := NewMalgo()

	if out.SampleRate() != 0 {
		t.Errorf("expected sample rate 0 before Open, got %d", out.SampleRate())
	}
	if out.Now() != 0 {
		t.Errorf("expected clock 0 before Open, got %v", out.Now())
	}
	if err := out.ScheduleAt(0, audio.Silence(4)); err == nil {
		t.Error("expected error scheduling on unopened output")
	}
	out.Flush()
}
