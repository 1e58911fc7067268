package probe

import (
	"context"
	"errors"
	"testing"
)

type fakeRunner struct {
	out  []byte
	err  error
	args []string
}

func (r *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.args = args
	return r.out, r.err
}

// TestProbeParsesFormatDuration: duration comes from the format block,
// dimensions from the first video stream.
func TestProbeParsesFormatDuration(t *testing.T) {
	out := `{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1080, "height": 1920}
		],
		"format": {"duration": "42.57"}
	}`
	runner := &fakeRunner{out: []byte(out)}
	p := &Prober{FFprobePath: "ffprobe", Runner: runner}

	info, err := p.Probe(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Duration != 42.57 {
		t.Errorf("duration = %v", info.Duration)
	}
	if info.Width != 1080 || info.Height != 1920 {
		t.Errorf("dimensions = %dx%d", info.Width, info.Height)
	}
	if runner.args[len(runner.args)-1] != "clip.mp4" {
		t.Errorf("probed path = %q", runner.args[len(runner.args)-1])
	}
}

// TestProbeFallsBackToStreamDuration: some containers only report duration
// per stream.
func TestProbeFallsBackToStreamDuration(t *testing.T) {
	out := `{
		"streams": [{"codec_type": "audio", "duration": "13.2"}],
		"format": {"duration": ""}
	}`
	p := &Prober{FFprobePath: "ffprobe", Runner: &fakeRunner{out: []byte(out)}}

	d, err := p.Duration(context.Background(), "voice.mp3")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 13.2 {
		t.Errorf("duration = %v", d)
	}
}

// TestProbeNoDurationIsError.
func TestProbeNoDurationIsError(t *testing.T) {
	p := &Prober{FFprobePath: "ffprobe", Runner: &fakeRunner{out: []byte(`{"streams": [], "format": {}}`)}}
	if _, err := p.Probe(context.Background(), "x.mp4"); err == nil {
		t.Fatal("expected error when no duration reported")
	}
}

// TestProbeRunnerErrorPropagates.
func TestProbeRunnerErrorPropagates(t *testing.T) {
	p := &Prober{FFprobePath: "ffprobe", Runner: &fakeRunner{err: errors.New("no such file")}}
	if _, err := p.Probe(context.Background(), "gone.mp4"); err == nil {
		t.Fatal("expected runner error to propagate")
	}
}

// TestProbeMalformedJSON.
func TestProbeMalformedJSON(t *testing.T) {
	p := &Prober{FFprobePath: "ffprobe", Runner: &fakeRunner{out: []byte("not json")}}
	if _, err := p.Probe(context.Background(), "x.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
}
