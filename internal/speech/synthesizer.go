// Package speech turns one narration script into one audio file on disk.
// Failures are loud: a synthesis error never leaves a partial file behind
// for the composer to choke on.
package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RohanSreelesh/StudyBytes/internal/id"
)

// Voice is the text-to-speech collaborator: an utterance in, the synthesized
// waveform bytes out.
type Voice interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Synthesizer writes narration audio into AudioDir. Files are named by a
// fresh unique id; the orchestrator renames them to the sanitized script
// name once the script's identity is settled.
type Synthesizer struct {
	Voice    Voice
	AudioDir string
}

// Synthesize produces exactly one mp3 for the transcript and returns its
// path. On any error nothing is left on disk.
func (s *Synthesizer) Synthesize(ctx context.Context, transcript string) (string, error) {
	audio, err := s.Voice.Synthesize(ctx, transcript)
	if err != nil {
		return "", fmt.Errorf("speech synthesis failed: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("speech synthesis returned empty audio")
	}

	path := filepath.Join(s.AudioDir, id.New()+".mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path, nil
}
