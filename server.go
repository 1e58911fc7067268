package main

import (
	"context"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/RohanSreelesh/StudyBytes/internal/catalog"
	"github.com/RohanSreelesh/StudyBytes/internal/composer"
	"github.com/RohanSreelesh/StudyBytes/internal/config"
	execx "github.com/RohanSreelesh/StudyBytes/internal/exec"
	"github.com/RohanSreelesh/StudyBytes/internal/fsutil"
	"github.com/RohanSreelesh/StudyBytes/internal/id"
	"github.com/RohanSreelesh/StudyBytes/internal/ledger"
	"github.com/RohanSreelesh/StudyBytes/internal/pipeline"
	"github.com/RohanSreelesh/StudyBytes/internal/probe"
	"github.com/RohanSreelesh/StudyBytes/internal/speech"
	"github.com/RohanSreelesh/StudyBytes/internal/transcripts"
)

type uploadResponse struct {
	ProcessingID string `json:"processingId"`
}

// Videos stays un-omitted so a finished job with zero renders still reports
// an explicit empty list, distinguishable from a job that has not finalized.
type statusResponse struct {
	Progress int             `json:"progress"`
	Status   string          `json:"status"`
	Complete bool            `json:"complete"`
	Error    string          `json:"error,omitempty"`
	Videos   []catalog.Video `json:"videos"`
}

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	layout := fsutil.Layout{Root: cfg.Storage.Root}
	if err := layout.Ensure(); err != nil {
		log.Fatalf("storage error: %v", err)
	}

	for _, bin := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
		if err := execx.Check(bin); err != nil {
			log.Printf("warning: %v — media stages will fail until it is installed", err)
		}
	}

	model, err := transcripts.NewGeminiModel(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatalf("gemini error: %v", err)
	}
	defer model.Close()

	voice := speech.NewElevenLabsVoice(
		cfg.ElevenLabs.APIKey,
		cfg.ElevenLabs.VoiceID,
		cfg.ElevenLabs.Model,
		cfg.ElevenLabs.Stability,
		cfg.ElevenLabs.SimilarityBoost,
	)

	runner := execx.NewCommandRunner()
	prober := &probe.Prober{FFprobePath: cfg.FFprobePath, Runner: runner}
	scanner := &catalog.Scanner{
		OutputDir: layout.OutputDir(),
		Prober:    prober,
		Thumbs: &catalog.Thumbnailer{
			FFmpegPath: cfg.FFmpegPath,
			Runner:     runner,
			Dir:        layout.ThumbnailsDir(),
		},
	}

	store := ledger.NewMemoryStore()
	orch := pipeline.NewOrchestrator(cfg.Pipeline.MaxConcurrentJobs)
	orch.Store = store
	orch.Model = model
	orch.Voice = voice
	orch.Composer = &composer.Composer{FFmpegPath: cfg.FFmpegPath, Runner: runner, Prober: prober}
	orch.Prober = prober
	orch.Scanner = scanner
	orch.Layout = layout
	orch.VideoDir = cfg.Storage.VideoDir
	orch.WordsPerCue = cfg.Pipeline.WordsPerCue
	orch.Retries = cfg.Gemini.Retries

	go func() {
		for {
			time.Sleep(sweepInterval)
			if n := store.Sweep(cfg.RetentionTTL()); n > 0 {
				log.Printf("ledger: evicted %d finished jobs", n)
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Upload materials and kick off a background job.
	e.POST("/materials", func(c echo.Context) error {
		form, err := c.MultipartForm()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "multipart form required"})
		}
		files := form.File["files"]
		if len(files) == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "at least one file is required"})
		}

		jobID := id.New()
		jobDir := layout.JobUploadsDir(jobID)
		if err := os.MkdirAll(jobDir, 0o755); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "cannot create upload dir"})
		}

		var saved []string
		for _, fh := range files {
			dst := fsutil.UniquePath(jobDir, fsutil.SanitizeName(filepath.Base(fh.Filename)))
			if err := saveUpload(fh, dst); err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "cannot save file"})
			}
			saved = append(saved, dst)
		}

		if err := store.Create(ledger.Job{
			ID:          jobID,
			SourceFiles: saved,
			Phase:       ledger.PhasePending,
			Message:     "Queued",
		}); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "cannot create job"})
		}

		orch.Submit(jobID)
		return c.JSON(http.StatusOK, uploadResponse{ProcessingID: jobID})
	})

	e.GET("/processing-status/:id", func(c echo.Context) error {
		job, err := store.Get(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "processing id not found"})
		}
		return c.JSON(http.StatusOK, statusResponse{
			Progress: job.Progress,
			Status:   job.Message,
			Complete: job.Complete(),
			Error:    job.Error,
			Videos:   job.Videos,
		})
	})

	e.GET("/videos", func(c echo.Context) error {
		videos, err := scanner.Scan(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list videos"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"videos": videos})
	})

	// Cleanup is refused while jobs are in flight: deleting inputs out from
	// under a mid-render job corrupts its outputs.
	e.POST("/cleanup", func(c echo.Context) error {
		if n := store.RunningCount(); n > 0 {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "cleanup refused: jobs are still running",
			})
		}
		if err := layout.Clear(); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "cleaned"})
	})

	// Rendered videos and their poster frames, read-only.
	e.Static(catalog.MediaPrefix, layout.OutputDir())
	e.Static(catalog.ThumbnailPrefix, layout.ThumbnailsDir())

	e.Logger.Fatal(e.Start(":" + cfg.Server.Port))
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
