package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeVoice struct {
	audio []byte
	err   error
	texts []string
}

func (v *fakeVoice) Synthesize(_ context.Context, text string) ([]byte, error) {
	v.texts = append(v.texts, text)
	return v.audio, v.err
}

// TestSynthesizeWritesAudioFile: the returned path is an mp3 inside AudioDir
// holding exactly the voice's bytes.
func TestSynthesizeWritesAudioFile(t *testing.T) {
	dir := t.TempDir()
	s := &Synthesizer{Voice: &fakeVoice{audio: []byte("mp3-bytes")}, AudioDir: dir}

	path, err := s.Synthesize(context.Background(), "mitosis has four phases")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("path %q outside audio dir", path)
	}
	if !strings.HasSuffix(path, ".mp3") {
		t.Fatalf("path %q lacks mp3 extension", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "mp3-bytes" {
		t.Fatalf("file content = %q", got)
	}
}

// TestSynthesizeVoiceErrorLeavesNothing: a failed synthesis writes no file.
func TestSynthesizeVoiceErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := &Synthesizer{Voice: &fakeVoice{err: errors.New("quota exceeded")}, AudioDir: dir}

	if _, err := s.Synthesize(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial files left behind: %v", entries)
	}
}

// TestSynthesizeRejectsEmptyAudio: zero bytes from the voice is an error, not
// an empty file.
func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	dir := t.TempDir()
	s := &Synthesizer{Voice: &fakeVoice{audio: nil}, AudioDir: dir}

	if _, err := s.Synthesize(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty audio")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("file written for empty audio: %v", entries)
	}
}

// TestSynthesizeUniquePaths: two syntheses never collide on disk.
func TestSynthesizeUniquePaths(t *testing.T) {
	s := &Synthesizer{Voice: &fakeVoice{audio: []byte("a")}, AudioDir: t.TempDir()}

	p1, err := s.Synthesize(context.Background(), "one")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.Synthesize(context.Background(), "two")
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatalf("paths collide: %q", p1)
	}
}
