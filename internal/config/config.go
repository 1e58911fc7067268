package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds everything the server and pipeline need. Values come from an
// optional YAML file; credentials and paths may be overridden by environment
// variables so deployments never put secrets in the file.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		Root     string `yaml:"root"`      // uploads/, audio/, output/, thumbnails/ live here
		VideoDir string `yaml:"video_dir"` // stock background clips
	} `yaml:"storage"`

	Gemini struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Retries int    `yaml:"retries"`
	} `yaml:"gemini"`

	ElevenLabs struct {
		APIKey          string  `yaml:"api_key"`
		VoiceID         string  `yaml:"voice_id"`
		Model           string  `yaml:"model"`
		Stability       float64 `yaml:"stability"`
		SimilarityBoost float64 `yaml:"similarity_boost"`
	} `yaml:"elevenlabs"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	Pipeline struct {
		MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`
		WordsPerCue       int `yaml:"words_per_cue"`
		RetentionMinutes  int `yaml:"retention_minutes"` // terminal ledger entries
	} `yaml:"pipeline"`
}

// getenv returns the env var or def when empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the YAML file when present, then applies env overrides and
// defaults. A missing file is not an error; missing credentials are, at
// Validate time.
func Load(path string) (Config, error) {
	var cfg Config
	if f, err := os.Open(path); err == nil {
		dec := yaml.NewDecoder(f)
		decErr := dec.Decode(&cfg)
		f.Close()
		if decErr != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, decErr)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("open %s: %w", path, err)
	}

	cfg.Server.Port = getenv("PORT", defStr(cfg.Server.Port, "8000"))
	cfg.Storage.Root = getenv("STORAGE_DIR", defStr(cfg.Storage.Root, "storage"))
	cfg.Storage.VideoDir = getenv("VIDEO_DIR", defStr(cfg.Storage.VideoDir, "video_files"))
	cfg.FFmpegPath = getenv("FFMPEG_PATH", defStr(cfg.FFmpegPath, "ffmpeg"))
	cfg.FFprobePath = getenv("FFPROBE_PATH", defStr(cfg.FFprobePath, "ffprobe"))

	cfg.Gemini.APIKey = getenv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.Model = getenv("GEMINI_MODEL", defStr(cfg.Gemini.Model, "gemini-1.5-flash"))
	if cfg.Gemini.Retries <= 0 {
		cfg.Gemini.Retries = 3
	}

	cfg.ElevenLabs.APIKey = getenv("ELEVENLABS_API_KEY", cfg.ElevenLabs.APIKey)
	cfg.ElevenLabs.VoiceID = getenv("VOICE_ID", cfg.ElevenLabs.VoiceID)
	cfg.ElevenLabs.Model = getenv("TTS_MODEL", defStr(cfg.ElevenLabs.Model, "eleven_flash_v2_5"))
	if cfg.ElevenLabs.Stability == 0 {
		cfg.ElevenLabs.Stability = 0.45
	}
	if cfg.ElevenLabs.SimilarityBoost == 0 {
		cfg.ElevenLabs.SimilarityBoost = 0.5
	}

	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxConcurrentJobs = n
		}
	}
	if cfg.Pipeline.MaxConcurrentJobs <= 0 {
		cfg.Pipeline.MaxConcurrentJobs = 2
	}
	if cfg.Pipeline.WordsPerCue <= 0 {
		cfg.Pipeline.WordsPerCue = 3
	}
	if cfg.Pipeline.RetentionMinutes <= 0 {
		cfg.Pipeline.RetentionMinutes = 60
	}

	return cfg, nil
}

// RetentionTTL is how long terminal ledger entries are kept before eviction.
func (c Config) RetentionTTL() time.Duration {
	return time.Duration(c.Pipeline.RetentionMinutes) * time.Minute
}

// Validate fails fast on anything the pipeline cannot run without.
// Called at startup, not at first use.
func (c Config) Validate() error {
	var missing []string
	if c.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.ElevenLabs.APIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	if c.ElevenLabs.VoiceID == "" {
		missing = append(missing, "VOICE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	if c.Storage.Root == "" {
		return errors.New("storage root must not be empty")
	}
	return nil
}

func defStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
