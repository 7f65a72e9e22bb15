package chapters

import (
	"fmt"
	"math"
	"strings"

	"slidecast/internal/textutil"
)

// YouTube chapter requirements.
const (
	YouTubeMinChapters = 3
	YouTubeMinLength   = 10.0
)

// Slide is the chapter-relevant view of one planned slide.
type Slide struct {
	Title    string
	Duration float64
}

// Entry is one chapter marker. Start and End are seconds from the beginning
// of the output.
type Entry struct {
	Slide int     `json:"slide"`
	Title string  `json:"title"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// StartMillis returns Start in the FFMETADATA1 timebase.
func (e Entry) StartMillis() int64 { return millis(e.Start) }

// EndMillis returns End in the FFMETADATA1 timebase.
func (e Entry) EndMillis() int64 { return millis(e.End) }

// Compute builds chapter entries from slides in page order. When no slide
// carries a title every slide becomes a chapter named "Slide N"; otherwise
// only titled slides do. Each chapter ends where the next one starts, and the
// last one at the total duration.
func Compute(slides []Slide) []Entry {
	titled := false
	for _, s := range slides {
		if textutil.NormalizeTitle(s.Title) != "" {
			titled = true
			break
		}
	}

	var (
		entries []Entry
		offset  float64
	)
	for i, s := range slides {
		title := textutil.NormalizeTitle(s.Title)
		if !titled {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		if title != "" {
			entries = append(entries, Entry{Slide: i, Title: title, Start: offset})
		}
		offset += s.Duration
	}
	for i := range entries {
		if i+1 < len(entries) {
			entries[i].End = entries[i+1].Start
		} else {
			entries[i].End = offset
		}
	}
	return entries
}

// CheckYouTube returns the YouTube chapter rules entries violate.
func CheckYouTube(entries []Entry) []string {
	var problems []string
	if len(entries) < YouTubeMinChapters {
		problems = append(problems, fmt.Sprintf("YouTube needs at least %d chapters, found %d", YouTubeMinChapters, len(entries)))
	}
	if len(entries) > 0 && entries[0].StartMillis() != 0 {
		problems = append(problems, fmt.Sprintf("YouTube needs the first chapter at 00:00, first is %q at %s", entries[0].Title, Timestamp(entries[0].Start)))
	}
	for _, e := range entries {
		if e.EndMillis()-e.StartMillis() < millis(YouTubeMinLength) {
			problems = append(problems, fmt.Sprintf("chapter %q is %.1fs long; YouTube needs at least %.0fs", e.Title, e.End-e.Start, YouTubeMinLength))
		}
	}
	return problems
}

// Timestamp formats seconds as MM:SS, or HH:MM:SS from one hour on.
func Timestamp(seconds float64) string {
	total := int(math.Max(0, seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Listing renders the companion text, one "timestamp title" line per entry.
func Listing(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s\n", Timestamp(e.Start), e.Title)
	}
	return b.String()
}

// Metadata renders entries as an FFMETADATA1 document.
func Metadata(entries []Entry) string {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n",
			e.StartMillis(), e.EndMillis(), escapeMetadata(e.Title))
	}
	return b.String()
}

var metadataEscaper = strings.NewReplacer(
	`\`, `\\`,
	"=", `\=`,
	";", `\;`,
	"#", `\#`,
	"\n", "\\\n",
)

func escapeMetadata(value string) string {
	return metadataEscaper.Replace(value)
}

func millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
