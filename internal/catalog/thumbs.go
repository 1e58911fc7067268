package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RohanSreelesh/StudyBytes/internal/exec"
)

// Thumbnail rendering knobs. 400px wide matches the grid the frontend lays
// the catalog out in; quality 2 is visually lossless for a poster frame.
const (
	thumbWidth   = 400
	thumbQuality = 2
	thumbSeekSec = 1.0
)

// Thumbnailer lazily renders one poster frame per catalog entry.
type Thumbnailer struct {
	FFmpegPath string
	Runner     exec.Runner
	Dir        string
}

// Ensure returns the thumbnail path for videoPath, generating it on first
// request. Subsequent scans find the file and skip the ffmpeg call.
func (t *Thumbnailer) Ensure(ctx context.Context, videoPath, baseName string) (string, error) {
	outPath := filepath.Join(t.Dir, baseName+".jpg")
	if _, err := os.Stat(outPath); err == nil {
		return outPath, nil
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.2f", thumbSeekSec),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", thumbWidth),
		"-q:v", fmt.Sprintf("%d", thumbQuality),
		outPath,
	}
	if _, err := t.Runner.Run(ctx, t.FFmpegPath, args...); err != nil {
		return "", fmt.Errorf("generate thumbnail: %w", err)
	}
	return outPath, nil
}
