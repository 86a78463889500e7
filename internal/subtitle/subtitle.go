// Package subtitle parses SRT files into cue sequences and converts
// between SRT timestamps and seconds with millisecond exactness.
package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/clipforge/pipeline/internal/domain"
)

var timeLineRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)

// TimestampRe matches one standalone SRT timestamp, "HH:MM:SS,mmm".
var TimestampRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3}$`)

// InvalidSubtitle is returned when a subtitle file cannot be interpreted
// at all (as opposed to individual malformed blocks, which are skipped).
type InvalidSubtitle struct {
	Reason string
}

func (e *InvalidSubtitle) Error() string {
	return fmt.Sprintf("invalid subtitle: %s", e.Reason)
}

// Parse reads an SRT document and returns its cues in order. Malformed
// blocks are skipped with a warning callback (nil-safe); a missing or
// empty document yields an empty, non-error sequence.
func Parse(r io.Reader, warn func(string)) ([]domain.Cue, error) {
	if warn == nil {
		warn = func(string) {}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &InvalidSubtitle{Reason: err.Error()}
	}
	text := strings.TrimPrefix(string(data), "\xEF\xBB\xBF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := splitBlocks(text)

	var cues []domain.Cue
	for _, block := range blocks {
		cue, ok := parseBlock(block)
		if !ok {
			if strings.TrimSpace(block) != "" {
				warn(fmt.Sprintf("skipping malformed subtitle block: %q", truncate(block, 60)))
			}
			continue
		}
		cues = append(cues, cue)
	}
	return cues, nil
}

func splitBlocks(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, b := range raw {
		if strings.TrimSpace(b) == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

func parseBlock(block string) (domain.Cue, bool) {
	scanner := bufio.NewScanner(strings.NewReader(block))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) < 2 {
		return domain.Cue{}, false
	}

	idxLine := 0
	index, err := strconv.Atoi(strings.TrimSpace(lines[idxLine]))
	timeLineIdx := 1
	if err != nil {
		// Some malformed files omit the index line; tolerate it by
		// treating line 0 as the time line.
		index = 0
		timeLineIdx = 0
	}

	if timeLineIdx >= len(lines) {
		return domain.Cue{}, false
	}
	m := timeLineRe.FindStringSubmatch(lines[timeLineIdx])
	if m == nil {
		return domain.Cue{}, false
	}
	start, err := FromParts(m[1], m[2], m[3], m[4])
	if err != nil {
		return domain.Cue{}, false
	}
	end, err := FromParts(m[5], m[6], m[7], m[8])
	if err != nil {
		return domain.Cue{}, false
	}

	textLines := lines[timeLineIdx+1:]
	text := strings.TrimSpace(strings.Join(textLines, "\n"))
	if text == "" {
		return domain.Cue{}, false
	}

	return domain.Cue{Index: index, Start: start, End: end, Text: text}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FromParts builds a seconds value from zero-padded HH, MM, SS, mmm
// string components.
func FromParts(hh, mm, ss, ms string) (float64, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(ss)
	if err != nil {
		return 0, err
	}
	millis, err := strconv.Atoi(ms)
	if err != nil {
		return 0, err
	}
	return ToSeconds(h, m, s, millis), nil
}

// ToSeconds combines hours/minutes/seconds/milliseconds into a single
// float64 seconds value.
func ToSeconds(h, m, s, ms int) float64 {
	totalMillis := ((h*3600+m*60+s)*1000 + ms)
	return float64(totalMillis) / 1000.0
}

// FromSeconds formats a seconds value as an SRT timestamp
// "HH:MM:SS,mmm". Millisecond-exact: parsing the result back through
// TimeStringSeconds or FromParts yields the same value for any value
// produced by ToSeconds — operating on whole milliseconds throughout avoids
// floating point drift across the round trip.
func FromSeconds(totalSeconds float64) string {
	totalMillis := int64(totalSeconds*1000 + 0.5) // round to nearest ms
	if totalMillis < 0 {
		totalMillis = 0
	}
	ms := totalMillis % 1000
	totalSecs := totalMillis / 1000
	s := totalSecs % 60
	totalMins := totalSecs / 60
	m := totalMins % 60
	h := totalMins / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// TimeStringSeconds parses a standalone "HH:MM:SS,mmm" timestamp (as
// opposed to Parse's "start --> end" block) into seconds.
func TimeStringSeconds(s string) (float64, error) {
	if !TimestampRe.MatchString(s) {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return FromParts(s[0:2], s[3:5], s[6:8], s[9:12])
}

// ExtractTextInRange concatenates the text of every cue whose window
// overlaps [startSeconds, endSeconds), in cue order, space-joined.
func ExtractTextInRange(cues []domain.Cue, startSeconds, endSeconds float64) string {
	var parts []string
	for _, c := range cues {
		if c.Start < endSeconds && c.End > startSeconds {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, " ")
}
