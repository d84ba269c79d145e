package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/onnwee/record-herald/catalog"
	"github.com/onnwee/record-herald/hexapi"
)

// FormatValue renders a run length rounded to 3 decimal digits, trailing
// zeros trimmed. This exact string is the token the video-link embed
// locates later, so rendering and replacement must agree.
func FormatValue(v float64) string {
	r := math.Round(v*1000) / 1000
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func formatMult(m float64) string {
	return strconv.FormatFloat(m, 'g', 6, 64)
}

// escapeLeadingMarkup prefixes a backslash when the name would otherwise
// be parsed as a heading, quote, or list marker at the start of a message.
func escapeLeadingMarkup(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '#', '>', '-', '*':
		return "\\" + s
	}
	return s
}

// RenderLine produces one announcement line for a record event. The
// difficulty suffix appears only when the level has more than one
// difficulty variant.
func RenderLine(meta catalog.LevelMeta, ev hexapi.ScoreEvent) string {
	diff := ""
	if meta.Variants > 1 {
		diff = fmt.Sprintf(" [x%s]", formatMult(ev.LevelOptions.DifficultyMult))
	}
	return fmt.Sprintf("**%s - %s%s** **%s** achieved **#%d** with a score of **%s**",
		escapeLeadingMarkup(meta.PackName), meta.LevelName, diff, ev.UserName, ev.Position, FormatValue(ev.Value))
}

// EmbedVideoLink rewrites the bolded value token for player's line, plain
// or already wrapped in a link, into a link to url. The match is anchored
// to the full "player achieved rank with score" tail so that another
// contributor in a merged announcement who happens to share the rounded
// value keeps their line untouched. Idempotent: running it again with the
// same url leaves the text unchanged, and a previously embedded link for
// the same value is replaced rather than nested.
func EmbedVideoLink(text, player string, value float64, url string) string {
	v := FormatValue(value)
	qv := regexp.QuoteMeta(v)
	token := `\*\*(?:\[` + qv + `\]\([^)\s]*\)|` + qv + `)\*\*`
	lineRe := regexp.MustCompile(`\*\*` + regexp.QuoteMeta(player) + `\*\* achieved \*\*#\d+\*\* with a score of ` + token)
	tokenRe := regexp.MustCompile(token + `$`)
	linked := "**[" + v + "](" + url + ")**"
	return lineRe.ReplaceAllStringFunc(text, func(m string) string {
		return tokenRe.ReplaceAllLiteralString(m, linked)
	})
}

// AppendLine merges a rendered line into existing announcement text.
func AppendLine(text, line string) string {
	if text == "" {
		return line
	}
	return strings.TrimRight(text, "\n") + "\n" + line
}
