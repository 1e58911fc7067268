package captions

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// ASS rendering constants. PlayRes fixes the coordinate space; the left and
// right margins leave 90% of the frame width for caption text. Alignment 5
// is middle-center.
const (
	playResX = 1080
	playResY = 1920
	marginLR = playResX / 20 // 5% each side
)

const assHeader = `[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, BackColour, Bold, Outline, Shadow, Alignment, MarginL, MarginR, MarginV
Style: Caption,Arial,70,&H00FFFFFF,&H00000000,&H00000000,1,2,0,5,%d,%d,0

[Events]
Format: Layer, Start, End, Style, Text
`

// WriteASS renders cues as an ASS subtitle file the composer burns into the
// video. Cues starting at or beyond maxDuration are dropped; end times are
// clipped to it.
func WriteASS(path string, cues []Cue, maxDuration float64) error {
	var b strings.Builder
	fmt.Fprintf(&b, assHeader, playResX, playResY, marginLR, marginLR)
	for _, cue := range cues {
		if cue.Start >= maxDuration {
			continue
		}
		end := cue.End
		if end > maxDuration {
			end = maxDuration
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Caption,%s\n",
			assTimestamp(cue.Start), assTimestamp(end), escapeASS(cue.Text))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// assTimestamp formats seconds as H:MM:SS.CS.
func assTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(math.Round(sec * 100))
	h := total / 360000
	m := (total % 360000) / 6000
	s := (total % 6000) / 100
	cs := total % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func escapeASS(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "\n", "\\N")
	return strings.ReplaceAll(text, "{", "(")
}
