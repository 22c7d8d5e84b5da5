package recall

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"quill/pkg/models"
)

// Recap periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// Recap is one time-bucketed summary.
type Recap struct {
	Period  string
	Summary string
	Count   int
}

// Summarizer condenses a bucket of entry texts into a short summary.
type Summarizer interface {
	Summarize(texts []string) string
}

// FallbackSummarizer is the deterministic summarization backend: it selects
// the longest sentences across the bucket, a crude but reproducible proxy
// for salience.
type FallbackSummarizer struct {
	MaxSentences int
}

// NewFallbackSummarizer returns a fallback summarizer keeping up to max
// sentences (4 when max is not positive).
func NewFallbackSummarizer(max int) *FallbackSummarizer {
	if max <= 0 {
		max = 4
	}
	return &FallbackSummarizer{MaxSentences: max}
}

func (f *FallbackSummarizer) Summarize(texts []string) string {
	var sentences []string
	seen := map[string]bool{}
	for _, text := range texts {
		for _, sentence := range splitSentences(text) {
			if !seen[sentence] {
				seen[sentence] = true
				sentences = append(sentences, sentence)
			}
		}
	}
	if len(sentences) == 0 {
		return "No entries available to summarise."
	}
	sort.SliceStable(sentences, func(i, j int) bool { return len(sentences[i]) > len(sentences[j]) })
	if len(sentences) > f.MaxSentences {
		sentences = sentences[:f.MaxSentences]
	}
	return strings.Join(sentences, " ")
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t') {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// RecentRecaps groups entries inside the lookback window into weekly (ISO
// week) or monthly buckets and summarizes each, newest bucket first.
func RecentRecaps(entries []models.Entry, period string, lookbackDays int, summarizer Summarizer) []Recap {
	if period != PeriodWeek && period != PeriodMonth {
		period = PeriodWeek
	}
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	if summarizer == nil {
		summarizer = NewFallbackSummarizer(0)
	}
	cutoff := time.Now().AddDate(0, 0, -lookbackDays)

	grouped := map[string][]models.Entry{}
	for _, entry := range entries {
		ts := entry.ParseTimestamp()
		if ts.IsZero() || ts.Before(cutoff) {
			continue
		}
		var key string
		if period == PeriodWeek {
			year, week := ts.ISOWeek()
			key = fmt.Sprintf("%d-W%02d", year, week)
		} else {
			key = fmt.Sprintf("%d-%02d", ts.Year(), int(ts.Month()))
		}
		grouped[key] = append(grouped[key], entry)
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	recaps := make([]Recap, 0, len(keys))
	for _, key := range keys {
		bucket := grouped[key]
		texts := make([]string, len(bucket))
		for i, entry := range bucket {
			texts[i] = entry.Content
		}
		recaps = append(recaps, Recap{
			Period:  key,
			Summary: summarizer.Summarize(texts),
			Count:   len(bucket),
		})
	}
	return recaps
}
