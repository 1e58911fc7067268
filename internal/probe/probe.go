// Package probe wraps ffprobe for the duration and stream facts the
// composer and catalog need.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/RohanSreelesh/StudyBytes/internal/exec"
)

type Prober struct {
	FFprobePath string
	Runner      exec.Runner
}

type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
		Duration  string `json:"duration,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns duration and, for video files, frame dimensions.
func (p *Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	out, err := p.Runner.Run(ctx, p.FFprobePath, args...)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return MediaInfo{}, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	var info MediaInfo
	if data.Format.Duration != "" {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, stream := range data.Streams {
		if stream.CodecType == "video" && info.Width == 0 {
			info.Width = stream.Width
			info.Height = stream.Height
		}
		if info.Duration == 0 && stream.Duration != "" {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.Duration = d
			}
		}
	}
	if info.Duration <= 0 {
		return info, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return info, nil
}

// Duration is the common single-value case.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
