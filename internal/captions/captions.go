// Package captions turns a narration transcript plus the measured duration of
// its audio into timed caption cues. Timing assumes a uniform speech rate:
// duration divided evenly across words. It is an approximation, not a forced
// alignment, and it is good enough for three-word flash captions.
package captions

import (
	"math/rand"
	"regexp"
	"strings"
)

// Cue is one timed caption overlay.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

const DefaultWordsPerCue = 3

// emphasisChance is the per-category probability of upper-casing matches.
const emphasisChance = 0.2

// Emphasis categories: absolutes, hype words, superlatives, intensifiers,
// exclamations. Each category is rolled once per transcript.
var emphasisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(never|always|every|all|none)\b`),
	regexp.MustCompile(`(?i)\b(amazing|awesome|incredible|terrible|horrible)\b`),
	regexp.MustCompile(`(?i)\b(best|worst|most|least)\b`),
	regexp.MustCompile(`(?i)\b(literally|actually|seriously|absolutely)\b`),
	regexp.MustCompile(`(?i)\b(wait|omg|wow|what|why|how|who)\b`),
}

var whitespace = regexp.MustCompile(`\s+`)

// Timer produces cues for transcripts. The rand source is injectable so the
// emphasis roll is deterministic in tests.
type Timer struct {
	WordsPerCue int
	Rand        *rand.Rand // nil means no emphasis
}

// Time chunks the transcript into cues spread uniformly across duration.
// Empty text or non-positive duration yields no cues. The last cue always
// ends exactly at duration.
func (t Timer) Time(transcript string, duration float64) []Cue {
	if duration <= 0 {
		return nil
	}
	words := strings.Fields(whitespace.ReplaceAllString(transcript, " "))
	if len(words) == 0 {
		return nil
	}

	perCue := t.WordsPerCue
	if perCue <= 0 {
		perCue = DefaultWordsPerCue
	}

	timePerWord := duration / float64(len(words))
	cues := make([]Cue, 0, (len(words)+perCue-1)/perCue)
	for i := 0; i < len(words); i += perCue {
		end := i + perCue
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[i:end], " ")
		if t.Rand != nil {
			text = t.emphasize(text)
		}
		cue := Cue{
			Start: float64(i) * timePerWord,
			End:   float64(end) * timePerWord,
			Text:  text,
		}
		if cue.End > duration || end == len(words) {
			cue.End = duration
		}
		cues = append(cues, cue)
	}
	return cues
}

// emphasize upper-cases whole words from a category with a fixed low
// probability, the TikTok caption tic.
func (t Timer) emphasize(text string) string {
	for _, pat := range emphasisPatterns {
		if t.Rand.Float64() >= emphasisChance {
			continue
		}
		text = pat.ReplaceAllStringFunc(text, strings.ToUpper)
	}
	return text
}
