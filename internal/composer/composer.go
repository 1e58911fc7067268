// Package composer renders the final explainer video: one background clip,
// one narration track, burned-in captions. The background is looped or
// trimmed until its duration matches the audio exactly, and the narration
// replaces whatever audio the background carried.
package composer

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RohanSreelesh/StudyBytes/internal/captions"
	"github.com/RohanSreelesh/StudyBytes/internal/exec"
	"github.com/RohanSreelesh/StudyBytes/internal/fsutil"
	"github.com/RohanSreelesh/StudyBytes/internal/id"
	"github.com/RohanSreelesh/StudyBytes/internal/probe"
)

// Fixed output encoding. 24fps H.264 + AAC matches what short-form players
// expect and keeps renders deterministic across runs.
const (
	outputFPS    = 24
	videoCodec   = "libx264"
	audioCodec   = "aac"
	ffmpegPreset = "fast"
)

type Composer struct {
	FFmpegPath string
	Runner     exec.Runner
	Prober     *probe.Prober
	TempDir    string // defaults to os.TempDir()
}

// Compose renders outPath from the background video plus narration audio and
// cues. It returns the path actually written: if the requested target fails,
// one retry happens against a sanitized variant of the path before the error
// propagates.
func (c *Composer) Compose(ctx context.Context, videoPath, audioPath string, cues []captions.Cue, outPath string) (string, error) {
	audioDur, err := c.Prober.Duration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("probe narration: %w", err)
	}
	videoDur, err := c.Prober.Duration(ctx, videoPath)
	if err != nil {
		return "", fmt.Errorf("probe background: %w", err)
	}

	// Whole copies of the background, enough to cover the narration, then
	// trimmed to the narration's exact length.
	loops := Loops(videoDur, audioDur)

	tempDir := c.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	subsPath := filepath.Join(tempDir, "captions_"+id.Short()+".ass")
	if err := captions.WriteASS(subsPath, cues, audioDur); err != nil {
		return "", fmt.Errorf("write captions: %w", err)
	}
	defer os.Remove(subsPath)

	args := renderArgs(videoPath, audioPath, subsPath, loops, audioDur, outPath)
	if _, err = c.Runner.Run(ctx, c.FFmpegPath, args...); err == nil {
		return outPath, nil
	}
	log.Printf("composer: render to %q failed, retrying with sanitized path: %v", outPath, err)

	// One retry with a conservative file name. A second failure is the
	// caller's problem; sibling renders are untouched either way.
	safePath := fsutil.SanitizePath(outPath)
	args = renderArgs(videoPath, audioPath, subsPath, loops, audioDur, safePath)
	if _, err := c.Runner.Run(ctx, c.FFmpegPath, args...); err != nil {
		return "", fmt.Errorf("render %s: %w", filepath.Base(safePath), err)
	}
	return safePath, nil
}

// Loops returns how many extra whole copies of the background are needed so
// that looped playback covers the audio. Zero means play once.
func Loops(videoDur, audioDur float64) int {
	if videoDur <= 0 || videoDur >= audioDur {
		return 0
	}
	return int(math.Ceil(audioDur/videoDur)) - 1
}

func renderArgs(videoPath, audioPath, subsPath string, loops int, audioDur float64, outPath string) []string {
	args := []string{"-y"}
	if loops > 0 {
		args = append(args, "-stream_loop", strconv.Itoa(loops))
	}
	args = append(args,
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-t", fmt.Sprintf("%.3f", audioDur),
		"-vf", "ass="+subsPath,
		"-r", strconv.Itoa(outputFPS),
		"-c:v", videoCodec,
		"-preset", ffmpegPreset,
		"-c:a", audioCodec,
		outPath,
	)
	return args
}
