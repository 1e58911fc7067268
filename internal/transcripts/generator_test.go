package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeModel replays canned responses in order. A non-nil entry in errs fails
// the call of the same index; err fails every call.
type fakeModel struct {
	responses []string
	errs      []error
	err       error
	calls     int
	prompts   []string
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	i := m.calls
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

// TestGenerateParsesCleanJSON is the happy path.
func TestGenerateParsesCleanJSON(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"videos": {"Photosynthesis": "Plants eat light.", "Osmosis": "Water moves."}}`,
	}}
	g := &Generator{Model: model, Delay: time.Millisecond}

	got, err := g.Generate(context.Background(), "material")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 2 || got["Photosynthesis"] != "Plants eat light." {
		t.Fatalf("unexpected result: %v", got)
	}
	if model.calls != 1 {
		t.Fatalf("model called %d times, want 1", model.calls)
	}
}

// TestGenerateStripsMarkdownFences covers code-fence and backtick wrapping.
func TestGenerateStripsMarkdownFences(t *testing.T) {
	model := &fakeModel{responses: []string{
		"```json\n{\"videos\": {\"Topic\": \"text\"}}\n```",
	}}
	g := &Generator{Model: model, Delay: time.Millisecond}

	got, err := g.Generate(context.Background(), "material")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got["Topic"] != "text" {
		t.Fatalf("unexpected result: %v", got)
	}
}

// TestGenerateRetriesMalformedThenSucceeds verifies a malformed first
// response followed by valid JSON within budget returns the parsed second
// response with no error, and the retry prompt gets stricter.
func TestGenerateRetriesMalformedThenSucceeds(t *testing.T) {
	model := &fakeModel{responses: []string{
		"Sure! Here are your scripts: not json at all",
		`{"videos": {"Recovered": "second try"}}`,
	}}
	g := &Generator{Model: model, Retries: 3, Delay: time.Millisecond}

	got, err := g.Generate(context.Background(), "material")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got["Recovered"] != "second try" {
		t.Fatalf("unexpected result: %v", got)
	}
	if model.calls != 2 {
		t.Fatalf("model called %d times, want 2", model.calls)
	}
	if len(model.prompts) < 2 || model.prompts[1] == model.prompts[0] {
		t.Fatal("retry prompt should carry the stricter JSON-only instruction")
	}
}

// TestGenerateExhaustsRetries checks exhaustion surfaces a MalformedError
// rather than partial data.
func TestGenerateExhaustsRetries(t *testing.T) {
	model := &fakeModel{responses: []string{"still not json"}}
	g := &Generator{Model: model, Retries: 2, Delay: time.Millisecond}

	_, err := g.Generate(context.Background(), "material")
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedError", err)
	}
	if malformed.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", malformed.Attempts)
	}
	if model.calls != 3 {
		t.Fatalf("model called %d times, want 3", model.calls)
	}
}

// TestGenerateRetriesTransientCallFailure: one failed collaborator call
// followed by valid JSON within budget succeeds, with the original prompt
// (the strict suffix is for parse failures only).
func TestGenerateRetriesTransientCallFailure(t *testing.T) {
	model := &fakeModel{
		errs:      []error{errors.New("503 service unavailable")},
		responses: []string{`{"videos": {"Recovered": "after outage"}}`},
	}
	g := &Generator{Model: model, Retries: 3, Delay: time.Millisecond}

	got, err := g.Generate(context.Background(), "material")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got["Recovered"] != "after outage" {
		t.Fatalf("unexpected result: %v", got)
	}
	if model.calls != 2 {
		t.Fatalf("model called %d times, want 2", model.calls)
	}
	if model.prompts[1] != model.prompts[0] {
		t.Fatal("transient failure should retry with the same prompt")
	}
}

// TestGeneratePersistentCallFailureExhausts: a collaborator down for every
// attempt still fails the job, after spending the whole retry budget.
func TestGeneratePersistentCallFailureExhausts(t *testing.T) {
	model := &fakeModel{err: errors.New("quota exceeded")}
	g := &Generator{Model: model, Retries: 2, Delay: time.Millisecond}

	_, err := g.Generate(context.Background(), "material")
	if err == nil {
		t.Fatal("expected error from persistently failing model")
	}
	if !errors.Is(err, model.err) {
		t.Fatalf("error = %v, want wrapped model error", err)
	}
	if model.calls != 3 {
		t.Fatalf("model called %d times, want 3", model.calls)
	}
}

// TestGenerateMissingVideosKey: valid JSON without the expected key means
// zero transcripts, not an error.
func TestGenerateMissingVideosKey(t *testing.T) {
	model := &fakeModel{responses: []string{`{"scripts": {"A": "b"}}`}}
	g := &Generator{Model: model, Delay: time.Millisecond}

	got, err := g.Generate(context.Background(), "material")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero transcripts, got %v", got)
	}
}

// TestGeneratePersistedJSONRoundTrips: the saved artifact parses back into
// the same mapping.
func TestGeneratePersistedJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	model := &fakeModel{responses: []string{
		`{"videos": {"Mitosis": "Cells divide.", "Meiosis": "Cells divide differently."}}`,
	}}
	g := &Generator{Model: model, Delay: time.Millisecond, DebugDir: dir}

	want, err := g.Generate(context.Background(), "material")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "generated_transcripts.json"))
	if err != nil {
		t.Fatalf("read persisted transcripts: %v", err)
	}
	var saved struct {
		Videos map[string]string `json:"videos"`
	}
	if err := json.Unmarshal(b, &saved); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}
	if len(saved.Videos) != len(want) {
		t.Fatalf("round trip lost entries: %v vs %v", saved.Videos, want)
	}
	for k, v := range want {
		if saved.Videos[k] != v {
			t.Fatalf("round trip mismatch for %q: %q vs %q", k, saved.Videos[k], v)
		}
	}
}

// TestGenerateSavesRawFailures: each malformed attempt leaves a debug file.
func TestGenerateSavesRawFailures(t *testing.T) {
	dir := t.TempDir()
	model := &fakeModel{responses: []string{"garbage"}}
	g := &Generator{Model: model, Retries: 1, Delay: time.Millisecond, DebugDir: dir}

	if _, err := g.Generate(context.Background(), "material"); err == nil {
		t.Fatal("expected failure")
	}
	for _, name := range []string{"transcripts_raw_attempt_1.txt", "transcripts_raw_attempt_2.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing debug file %s: %v", name, err)
		}
	}
}

// TestStripFences covers the wrapper shapes seen in the wild.
func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"`{\"a\":1}`", `{"a":1}`},
		{"Here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Errorf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
