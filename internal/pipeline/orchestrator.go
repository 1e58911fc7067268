// Package pipeline drives one job end to end: material analysis, transcript
// generation, narration synthesis, video composition, catalog assembly. It is
// the single boundary that guarantees every job reaches a terminal ledger
// state — a polling client never waits on a silently dead task.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/RohanSreelesh/StudyBytes/internal/captions"
	"github.com/RohanSreelesh/StudyBytes/internal/catalog"
	"github.com/RohanSreelesh/StudyBytes/internal/composer"
	"github.com/RohanSreelesh/StudyBytes/internal/fsutil"
	"github.com/RohanSreelesh/StudyBytes/internal/id"
	"github.com/RohanSreelesh/StudyBytes/internal/ledger"
	"github.com/RohanSreelesh/StudyBytes/internal/material"
	"github.com/RohanSreelesh/StudyBytes/internal/probe"
	"github.com/RohanSreelesh/StudyBytes/internal/speech"
	"github.com/RohanSreelesh/StudyBytes/internal/transcripts"
)

// Stage boundaries as cumulative progress percentages.
const (
	pctAnalyzed    = 20
	pctTranscripts = 30
	pctAudio       = 50
	pctVideo       = 95
	pctDone        = 100
)

// script carries one transcript's identity through every stage, so artifacts
// stay linked by id instead of re-derived name matching.
type script struct {
	ID        string
	Name      string
	Safe      string // sanitized name used for filenames
	Text      string
	AudioPath string
	VideoPath string
}

// Orchestrator owns the collaborators and runs jobs as admission-limited
// background tasks.
type Orchestrator struct {
	Store       ledger.Store
	Model       transcripts.TextModel
	Voice       speech.Voice
	Composer    *composer.Composer
	Prober      *probe.Prober
	Scanner     *catalog.Scanner
	Layout      fsutil.Layout
	VideoDir    string // stock background clips
	WordsPerCue int
	Retries     int
	RetryDelay  time.Duration

	sem chan struct{}
}

// NewOrchestrator bounds concurrent jobs at maxJobs; submissions beyond the
// bound queue behind the semaphore rather than running unbounded.
func NewOrchestrator(maxJobs int) *Orchestrator {
	if maxJobs <= 0 {
		maxJobs = 2
	}
	return &Orchestrator{sem: make(chan struct{}, maxJobs)}
}

// Submit schedules the job's pipeline as a background task and returns
// immediately. The ledger entry must already exist.
func (o *Orchestrator) Submit(jobID string) {
	go func() {
		o.sem <- struct{}{}
		defer func() { <-o.sem }()
		o.run(jobID)
	}()
}

// run executes the full stage sequence. Every exit path, including panics,
// lands the job in a terminal phase.
func (o *Orchestrator) run(jobID string) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline %s: panic: %v\n%s", jobID, r, debug.Stack())
			o.fail(jobID, fmt.Errorf("internal error: %v", r))
		}
	}()

	o.progress(jobID, ledger.StageInitializing, 0, "Initializing processing")

	// Analyzing: pull text out of every uploaded material file.
	o.progress(jobID, ledger.StageAnalyzing, 0, "Analyzing uploaded materials")
	materialText, err := material.ExtractDir(o.Layout.JobUploadsDir(jobID))
	if err != nil {
		o.fail(jobID, fmt.Errorf("analyze materials: %w", err))
		return
	}
	if strings.TrimSpace(materialText) == "" {
		o.fail(jobID, fmt.Errorf("no readable text found in uploaded materials"))
		return
	}
	o.progress(jobID, ledger.StageAnalyzing, pctAnalyzed, "Materials analyzed")

	// Transcript generation, with JSON-repair retries inside the generator.
	o.progress(jobID, ledger.StageGeneratingTranscripts, pctAnalyzed, "Generating video scripts")
	gen := &transcripts.Generator{
		Model:    o.Model,
		Retries:  o.Retries,
		Delay:    o.RetryDelay,
		DebugDir: o.Layout.JobUploadsDir(jobID),
	}
	scriptSet, err := gen.Generate(ctx, materialText)
	if err != nil {
		o.fail(jobID, fmt.Errorf("generate transcripts: %w", err))
		return
	}

	scripts := newScripts(scriptSet)
	o.Store.Update(jobID, func(j *ledger.Job) {
		j.Transcripts = scriptSet
		j.ScriptNames = make(map[string]string, len(scripts))
		for _, sc := range scripts {
			j.ScriptNames[sc.ID] = sc.Name
		}
	})
	o.progress(jobID, ledger.StageGeneratingTranscripts, pctTranscripts,
		fmt.Sprintf("Generated %d video scripts", len(scripts)))

	// Narration synthesis, one audio artifact per surviving script.
	scripts = o.synthesizeAll(ctx, jobID, scripts)

	// Video composition, one render per script that has audio.
	scripts = o.composeAll(ctx, jobID, scripts)

	// Finalize: assemble the catalog from what actually rendered.
	o.progress(jobID, ledger.StageFinalizing, pctVideo, "Finalizing videos")
	videos := o.collectVideos(ctx, scripts)

	o.Store.Update(jobID, func(j *ledger.Job) {
		j.Phase = ledger.PhaseSucceeded
		j.Stage = ledger.StageFinalizing
		j.Progress = pctDone
		j.Message = fmt.Sprintf("Complete: %d videos ready", len(videos))
		j.Videos = videos
	})
	log.Printf("pipeline %s: complete, %d videos", jobID, len(videos))
}

// synthesizeAll voices every script, skipping per-script failures. Progress
// advances linearly from pctTranscripts to pctAudio.
func (o *Orchestrator) synthesizeAll(ctx context.Context, jobID string, scripts []script) []script {
	if len(scripts) == 0 {
		o.progress(jobID, ledger.StageSynthesizingAudio, pctAudio, "No scripts to voice")
		return scripts
	}

	synth := &speech.Synthesizer{Voice: o.Voice, AudioDir: o.Layout.AudioDir()}
	width := float64(pctAudio - pctTranscripts)
	kept := scripts[:0]
	for i, sc := range scripts {
		o.progress(jobID, ledger.StageSynthesizingAudio,
			pctTranscripts+int(float64(i)*width/float64(len(scripts))),
			fmt.Sprintf("Synthesizing narration %d/%d: %s", i+1, len(scripts), sc.Name))

		path, err := synth.Synthesize(ctx, sc.Text)
		if err != nil {
			log.Printf("pipeline %s: skipping script %q: %v", jobID, sc.Name, err)
			continue
		}
		// Rename from the synthesizer's fresh uuid to the sanitized script
		// name so downstream paths are predictable and collision-free.
		named := filepath.Join(o.Layout.AudioDir(), sc.Safe+".mp3")
		if err := os.Rename(path, named); err != nil {
			log.Printf("pipeline %s: skipping script %q: rename audio: %v", jobID, sc.Name, err)
			os.Remove(path)
			continue
		}
		sc.AudioPath = named
		kept = append(kept, sc)
	}
	o.progress(jobID, ledger.StageSynthesizingAudio, pctAudio,
		fmt.Sprintf("Narration ready for %d scripts", len(kept)))
	return kept
}

// composeAll renders one video per script, cycling through the stock
// background clips. Per-script failures are logged and skipped.
func (o *Orchestrator) composeAll(ctx context.Context, jobID string, scripts []script) []script {
	if len(scripts) == 0 {
		o.progress(jobID, ledger.StageComposingVideos, pctVideo, "No audio to compose")
		return scripts
	}

	backgrounds, err := stockVideos(o.VideoDir)
	if err != nil || len(backgrounds) == 0 {
		log.Printf("pipeline %s: no background videos available: %v", jobID, err)
		o.progress(jobID, ledger.StageComposingVideos, pctVideo, "No background videos available")
		return nil
	}

	timer := captions.Timer{
		WordsPerCue: o.WordsPerCue,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	width := float64(pctVideo - pctAudio)
	kept := scripts[:0]
	for i, sc := range scripts {
		o.progress(jobID, ledger.StageComposingVideos,
			pctAudio+int(float64(i)*width/float64(len(scripts))),
			fmt.Sprintf("Composing video %d/%d: %s", i+1, len(scripts), sc.Name))

		audioDur, err := o.Prober.Duration(ctx, sc.AudioPath)
		if err != nil {
			log.Printf("pipeline %s: skipping video for %q: %v", jobID, sc.Name, err)
			continue
		}

		cues := timer.Time(sc.Text, audioDur)
		background := backgrounds[i%len(backgrounds)]
		outPath := filepath.Join(o.Layout.OutputDir(), sc.Safe+".mp4")
		written, err := o.Composer.Compose(ctx, background, sc.AudioPath, cues, outPath)
		if err != nil {
			log.Printf("pipeline %s: skipping video for %q: %v", jobID, sc.Name, err)
			continue
		}
		sc.VideoPath = written
		kept = append(kept, sc)
	}
	o.progress(jobID, ledger.StageComposingVideos, pctVideo,
		fmt.Sprintf("Composed %d videos", len(kept)))
	return kept
}

// collectVideos scans the catalog and keeps the entries this job rendered.
func (o *Orchestrator) collectVideos(ctx context.Context, scripts []script) []catalog.Video {
	rendered := make(map[string]bool, len(scripts))
	for _, sc := range scripts {
		if sc.VideoPath != "" {
			base := strings.TrimSuffix(filepath.Base(sc.VideoPath), filepath.Ext(sc.VideoPath))
			rendered[base] = true
		}
	}
	if len(rendered) == 0 {
		return []catalog.Video{}
	}

	all, err := o.Scanner.Scan(ctx)
	if err != nil {
		log.Printf("pipeline: catalog scan during finalize: %v", err)
		return []catalog.Video{}
	}
	videos := make([]catalog.Video, 0, len(rendered))
	for _, v := range all {
		if rendered[v.ID] {
			videos = append(videos, v)
		}
	}
	return videos
}

func (o *Orchestrator) progress(jobID string, stage ledger.Stage, pct int, msg string) {
	err := o.Store.Update(jobID, func(j *ledger.Job) {
		j.Phase = ledger.PhaseRunning
		j.Stage = stage
		j.Progress = pct
		j.Message = msg
	})
	if err != nil {
		log.Printf("pipeline %s: progress update: %v", jobID, err)
	}
}

func (o *Orchestrator) fail(jobID string, cause error) {
	log.Printf("pipeline %s: failed: %v", jobID, cause)
	err := o.Store.Update(jobID, func(j *ledger.Job) {
		j.Phase = ledger.PhaseFailed
		j.Message = "Processing failed"
		j.Error = cause.Error()
	})
	if err != nil {
		log.Printf("pipeline %s: failure update: %v", jobID, err)
	}
}

// newScripts assigns each transcript a fresh id and a sanitized filename,
// in deterministic name order.
func newScripts(set map[string]string) []script {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	scripts := make([]script, 0, len(names))
	for _, name := range names {
		text := strings.TrimSpace(set[name])
		if text == "" {
			continue
		}
		scripts = append(scripts, script{
			ID:   id.New(),
			Name: name,
			Safe: fsutil.SanitizeName(name),
			Text: text,
		})
	}
	return scripts
}

// stockVideos lists background clips in name order.
func stockVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read video dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mp4", ".mov", ".avi", ".mkv", ".webm":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
