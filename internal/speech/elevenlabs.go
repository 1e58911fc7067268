package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/haguro/elevenlabs-go"
)

// ElevenLabsVoice synthesizes speech through the ElevenLabs API.
type ElevenLabsVoice struct {
	client          *elevenlabs.Client
	voiceID         string
	modelID         string
	stability       float32
	similarityBoost float32
}

// NewElevenLabsVoice builds the client. Voice settings mirror the original
// tuning: stability 0.45 and similarity 0.5 read well for fast narration.
func NewElevenLabsVoice(apiKey, voiceID, modelID string, stability, similarityBoost float64) *ElevenLabsVoice {
	return &ElevenLabsVoice{
		client:          elevenlabs.NewClient(context.Background(), apiKey, 60*time.Second),
		voiceID:         voiceID,
		modelID:         modelID,
		stability:       float32(stability),
		similarityBoost: float32(similarityBoost),
	}
}

// Synthesize converts text to mp3 bytes.
func (v *ElevenLabsVoice) Synthesize(_ context.Context, text string) ([]byte, error) {
	audio, err := v.client.TextToSpeech(v.voiceID, elevenlabs.TextToSpeechRequest{
		Text:    text,
		ModelID: v.modelID,
		VoiceSettings: &elevenlabs.VoiceSettings{
			Stability:       v.stability,
			SimilarityBoost: v.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs text-to-speech: %w", err)
	}
	return audio, nil
}
