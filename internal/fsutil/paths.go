package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RohanSreelesh/StudyBytes/internal/id"
)

// Layout fixes the on-disk namespaces shared by all jobs.
type Layout struct {
	Root string
}

func (l Layout) UploadsDir() string    { return filepath.Join(l.Root, "uploads") }
func (l Layout) AudioDir() string      { return filepath.Join(l.Root, "audio") }
func (l Layout) OutputDir() string     { return filepath.Join(l.Root, "output") }
func (l Layout) ThumbnailsDir() string { return filepath.Join(l.Root, "thumbnails") }

// JobUploadsDir is the per-job subdirectory holding raw material files
// plus transcript debug artifacts.
func (l Layout) JobUploadsDir(jobID string) string {
	return filepath.Join(l.UploadsDir(), jobID)
}

// Ensure creates every storage directory the pipeline writes into.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.UploadsDir(), l.AudioDir(), l.OutputDir(), l.ThumbnailsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Clear removes the contents of the uploads, audio, output and thumbnail
// directories while keeping the directories themselves.
func (l Layout) Clear() error {
	for _, dir := range []string{l.UploadsDir(), l.AudioDir(), l.OutputDir(), l.ThumbnailsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("remove %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

var unsafeChars = strings.NewReplacer(
	":", "_",
	"/", "_",
	"\\", "_",
	" ", "_",
)

// SanitizeName rewrites a display name into a filesystem-safe one.
// Colons, slashes, backslashes and spaces become underscores.
func SanitizeName(name string) string {
	return unsafeChars.Replace(strings.TrimSpace(name))
}

// SanitizePath strips a path's base name down to a conservative character
// set, used as the retry path when a render target turns out unwritable.
func SanitizePath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return filepath.Join(dir, b.String())
}

// UniquePath returns a path in dir for name that does not clash with an
// existing file. Distinct uploads can sanitize to the same base name, so a
// taken name gets a short id suffix instead of overwriting.
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, base+"_"+id.Short()+ext)
	}
}

// TitleFromFilename turns a sanitized file name back into a display title:
// extension dropped, separators to spaces, words title-cased.
func TitleFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
