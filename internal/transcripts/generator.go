// Package transcripts asks the language model for a set of per-concept
// narration scripts and survives the model's habit of wrapping JSON in
// markdown fences or returning something that is not JSON at all.
package transcripts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TextModel is the generative-language collaborator: one prompt in, one text
// completion out. The completion should be JSON but often is not quite.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MalformedError reports that every attempt produced unparseable output.
// The last raw response is kept for the ledger message and debug files.
type MalformedError struct {
	Attempts     int
	LastResponse string
	Err          error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("transcript generation produced no valid JSON after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

const basePrompt = `You are writing scripts for short TikTok-style explainer videos.
From the study material below, identify the key concepts (between 2 and 5) and
write one narration script per concept. Each script should be 60-120 words,
energetic, conversational, and self-contained.

Respond with JSON only, using exactly this shape:
{"videos": {"Concept Name": "narration text", ...}}

Study material:
%s`

const strictSuffix = `

IMPORTANT: your previous response was not valid JSON. Respond with RAW JSON
ONLY. No markdown, no code fences, no commentary before or after the JSON
object.`

// Generator drives the model with bounded JSON-repair retries.
type Generator struct {
	Model    TextModel
	Retries  int           // attempts beyond the first; default 3
	Delay    time.Duration // pause between attempts, respects rate limits
	DebugDir string        // where parsed results and failing raws are persisted
}

type scriptSet struct {
	Videos map[string]string `json:"videos"`
}

// Generate returns the script-name → narration mapping for materialText.
// Transient call failures retry with the same prompt; parse failures
// re-prompt with a stricter instruction. Both draw on the same budget of
// Retries extra attempts. Exhaustion on parse failures returns a
// MalformedError instead of partial data.
func (g *Generator) Generate(ctx context.Context, materialText string) (map[string]string, error) {
	retries := g.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := g.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	prompt := fmt.Sprintf(basePrompt, materialText)
	var lastRaw string
	var lastErr error
	callFailed := false

	for attempt := 1; attempt <= retries+1; attempt++ {
		raw, err := g.Model.Generate(ctx, prompt)
		if err != nil {
			// Transient collaborator failure (timeout, 5xx, rate limit):
			// spend a retry on it like a parse failure, same pacing.
			lastErr = err
			callFailed = true
			log.Printf("transcripts: attempt %d model call failed: %v", attempt, err)
			if attempt <= retries {
				if err := wait(ctx, delay); err != nil {
					return nil, err
				}
			}
			continue
		}
		lastRaw = raw
		callFailed = false

		payload := StripFences(raw)
		var set scriptSet
		if err := json.Unmarshal([]byte(payload), &set); err != nil {
			lastErr = err
			log.Printf("transcripts: attempt %d returned invalid JSON: %v", attempt, err)
			g.saveDebug(fmt.Sprintf("transcripts_raw_attempt_%d.txt", attempt), []byte(raw))
			if attempt <= retries {
				prompt = fmt.Sprintf(basePrompt, materialText) + strictSuffix
				if err := wait(ctx, delay); err != nil {
					return nil, err
				}
			}
			continue
		}

		if len(set.Videos) == 0 {
			// Valid JSON without the expected key counts as zero scripts,
			// not an error, but it drops content so make it loud.
			log.Printf("transcripts: response parsed but contained no %q key, treating as zero scripts", "videos")
		}
		if b, err := json.MarshalIndent(set, "", "  "); err == nil {
			g.saveDebug("generated_transcripts.json", b)
		}
		return set.Videos, nil
	}

	if callFailed {
		return nil, fmt.Errorf("language model call failed after %d attempts: %w", retries+1, lastErr)
	}
	return nil, &MalformedError{Attempts: retries + 1, LastResponse: lastRaw, Err: lastErr}
}

func wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StripFences extracts the JSON payload from completions wrapped in markdown
// code fences or stray backticks.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.Trim(s, "`")
	// Models sometimes prepend a sentence before the object. Cut to the
	// outermost braces when both are present.
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

func (g *Generator) saveDebug(name string, data []byte) {
	if g.DebugDir == "" {
		return
	}
	path := filepath.Join(g.DebugDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("transcripts: failed to persist %s: %v", name, err)
	}
}
