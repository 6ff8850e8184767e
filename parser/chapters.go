package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// DefaultChapterDuration is shown when a player has no duration label.
const DefaultChapterDuration = "00:00"

// maxDurationSeconds is the longest chapter ParseDuration accepts.
const maxDurationSeconds = math.MaxInt32

// SourceRule locates a playable URL inside an audio block.
type SourceRule struct {
	Selector string
	Attr     string
}

// ChapterSpec describes where a detail page keeps its description and players.
type ChapterSpec struct {
	Description string
	Block       string
	Heading     string
	Sources     []SourceRule
	Duration    string
}

// DefaultChapterSpec matches the WordPress audio blocks used on detail pages.
var DefaultChapterSpec = ChapterSpec{
	Description: "div.entry-content p",
	Block:       "figure.wp-block-audio, div.wp-block-audio, div.audio-player",
	Heading:     "h2, h3, h4",
	Sources: []SourceRule{
		{Selector: "audio source[src]", Attr: "src"},
		{Selector: "audio[src]", Attr: "src"},
		{Selector: `a[href$=".mp3"]`, Attr: "href"},
	},
	Duration: ".duration, .audio-duration, time",
}

// ExtractChapters reads the description and the ordered chapter list of a
// detail page. Blocks without a playable source are skipped and do not
// consume a chapter number. A heading inside a block names that block;
// otherwise a heading names the first block that follows it.
func ExtractChapters(doc *goquery.Selection, spec ChapterSpec) (string, []models.Chapter) {
	description := ""
	doc.Find(spec.Description).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		description = NormalizeText(p.Text())
		return description == ""
	})

	chapters := []models.Chapter{}
	pendingTitle := ""
	offset := 0

	doc.Find(spec.Heading + ", " + spec.Block).Each(func(_ int, s *goquery.Selection) {
		if !s.Is(spec.Block) {
			if s.ParentsFiltered(spec.Block).Length() == 0 {
				pendingTitle = NormalizeText(s.Text())
			}
			return
		}
		// Nested player markup is handled by its outermost block.
		if s.ParentsFiltered(spec.Block).Length() > 0 {
			return
		}

		audioURL := audioSource(s, spec.Sources)
		if audioURL == "" {
			return
		}

		number := len(chapters) + 1
		title := NormalizeText(s.Find(spec.Heading).First().Text())
		if title == "" {
			title = pendingTitle
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", number)
		}
		pendingTitle = ""

		duration := NormalizeText(s.Find(spec.Duration).First().Text())
		if duration == "" {
			duration = DefaultChapterDuration
		}

		chapters = append(chapters, models.Chapter{
			Number:    number,
			Title:     title,
			Duration:  duration,
			AudioURL:  audioURL,
			StartTime: offset,
		})
		if seconds, ok := ParseDuration(duration); ok {
			offset += seconds
		}
	})

	return description, chapters
}

func audioSource(block *goquery.Selection, rules []SourceRule) string {
	for _, rule := range rules {
		if v, ok := block.Find(rule.Selector).First().Attr(rule.Attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// ParseDuration converts "H:MM:SS", "MM:SS" or "SS" into seconds.
// Missing higher units count as zero. Values above maxDurationSeconds are
// rejected.
func ParseDuration(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, false
	}

	total := 0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if !isDigits(part) {
			return 0, false
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		if n > maxDurationSeconds || total > (maxDurationSeconds-n)/60 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
