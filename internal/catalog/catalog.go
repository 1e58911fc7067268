// Package catalog exposes the rendered-video directory as a browseable list.
// The catalog is a view: every read rescans the filesystem, so entries appear
// when renders land and disappear when cleanup removes them.
package catalog

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RohanSreelesh/StudyBytes/internal/fsutil"
	"github.com/RohanSreelesh/StudyBytes/internal/probe"
)

// Video is one playable catalog entry.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	Duration    int    `json:"duration"` // whole seconds
	Description string `json:"description"`
}

// URL prefixes the HTTP layer serves the two static directories under.
const (
	MediaPrefix     = "/media"
	ThumbnailPrefix = "/thumbnails"
)

const probeLimit = 4

// Scanner builds catalog entries from the output directory, probing durations
// and generating missing thumbnails as it goes.
type Scanner struct {
	OutputDir string
	Prober    *probe.Prober
	Thumbs    *Thumbnailer // nil disables thumbnail generation
}

// Scan lists rendered videos. Entry ids derive from the file name, so two
// scans with no intervening writes return identical catalogs.
func (s *Scanner) Scan(ctx context.Context) ([]Video, error) {
	entries, err := os.ReadDir(s.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Video{}, nil
		}
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".mp4" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	videos := make([]Video, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			videos[i] = s.entryFor(gctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return videos, nil
}

func (s *Scanner) entryFor(ctx context.Context, name string) Video {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	title := fsutil.TitleFromFilename(name)

	duration := 0
	if info, err := s.Prober.Probe(ctx, filepath.Join(s.OutputDir, name)); err != nil {
		log.Printf("catalog: probe %s: %v", name, err)
	} else {
		duration = int(math.Round(info.Duration))
	}

	thumbnail := ""
	if s.Thumbs != nil {
		thumbPath, err := s.Thumbs.Ensure(ctx, filepath.Join(s.OutputDir, name), base)
		if err != nil {
			log.Printf("catalog: thumbnail for %s: %v", name, err)
		} else {
			thumbnail = ThumbnailPrefix + "/" + filepath.Base(thumbPath)
		}
	}

	return Video{
		ID:          base,
		Title:       title,
		URL:         MediaPrefix + "/" + name,
		Thumbnail:   thumbnail,
		Duration:    duration,
		Description: fmt.Sprintf("This video explains %s from your study materials with examples.", strings.ToLower(title)),
	}
}
