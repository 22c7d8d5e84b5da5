// Package recall implements search over journal entries: lexical fuzzy
// matching, a cached semantic embedding index with a deterministic fallback,
// a score-weighted hybrid of the two, and periodic recap summaries.
package recall

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"quill/pkg/models"
)

// Hit is one scored search result.
type Hit struct {
	Entry       models.Entry
	Score       float64
	MatchedDate bool
	Snippet     string
	Source      string
}

// Options carries the recall tuning knobs. The weights and thresholds are
// empirical choices, threaded through from configuration rather than
// hard-coded.
type Options struct {
	Limit          int
	Threshold      float64
	DateBonus      float64
	FuzzyWeight    float64
	SemanticWeight float64
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Limit:          5,
		Threshold:      0.15,
		DateBonus:      0.15,
		FuzzyWeight:    0.6,
		SemanticWeight: 0.65,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	if o.Threshold == 0 {
		o.Threshold = d.Threshold
	}
	if o.DateBonus == 0 {
		o.DateBonus = d.DateBonus
	}
	if o.FuzzyWeight == 0 {
		o.FuzzyWeight = d.FuzzyWeight
	}
	if o.SemanticWeight == 0 {
		o.SemanticWeight = d.SemanticWeight
	}
	return o
}

var monthMap = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// extractDateHint pulls a date out of the query: either an explicit ISO token
// or a month name followed by a day number (current year assumed).
func extractDateHint(query string) string {
	query = strings.ToLower(query)
	if iso := isoDatePattern.FindString(query); iso != "" {
		return iso
	}

	tokens := strings.Fields(query)
	for i, token := range tokens {
		clean := strings.Trim(token, ",.?!")
		month, ok := monthMap[clean]
		if !ok || i+1 >= len(tokens) {
			continue
		}
		dayToken := strings.Trim(tokens[i+1], ",.?!")
		day := 0
		if _, err := fmt.Sscanf(dayToken, "%d", &day); err != nil || day < 1 || day > 31 {
			continue
		}
		return fmt.Sprintf("%04d-%02d-%02d", time.Now().Year(), int(month), day)
	}
	return ""
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func normalize(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(strings.ToLower(text), " "))
}

// SearchEntries performs fuzzy lexical search: for each entry the similarity
// ratio of the query against the content and against the tag list is taken
// (whichever is higher). A date hint in the query adds a fixed bonus to
// entries whose date matches exactly; the bonus never surfaces an entry on
// its own since sub-threshold scores are dropped before it could matter only
// in combination with a real match.
func SearchEntries(query string, entries []models.Entry, opts Options) []Hit {
	opts = opts.withDefaults()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	dateHint := extractDateHint(query)

	var hits []Hit
	for _, entry := range entries {
		score := similarity(normalize(query), normalize(entry.Content))
		if len(entry.Tags) > 0 {
			tagScore := similarity(normalize(query), normalize(strings.Join(entry.Tags, " ")))
			if tagScore > score {
				score = tagScore
			}
		}
		if score < opts.Threshold {
			continue
		}
		matchedDate := false
		if dateHint != "" && entry.Date == dateHint {
			matchedDate = true
			score += opts.DateBonus
		}
		hits = append(hits, Hit{
			Entry:       entry,
			Score:       score,
			MatchedDate: matchedDate,
			Snippet:     buildSnippet(entry.Content, query),
			Source:      "fuzzy",
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits
}

const snippetMaxLength = 120

// buildSnippet extracts a short window around the first query occurrence, or
// the head of the content when the query does not appear verbatim.
func buildSnippet(text, query string) string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	lowered := strings.ToLower(clean)
	q := strings.ToLower(strings.TrimSpace(query))

	var snippet string
	if q != "" && strings.Contains(lowered, q) {
		idx := strings.Index(lowered, q)
		start := idx - 40
		if start < 0 {
			start = 0
		}
		end := idx + len(q) + 60
		if end > len(clean) {
			end = len(clean)
		}
		snippet = clean[start:end]
	} else {
		if len(clean) > snippetMaxLength {
			snippet = clean[:snippetMaxLength]
		} else {
			snippet = clean
		}
	}
	if len(snippet) == snippetMaxLength && len(clean) > snippetMaxLength {
		snippet += "…"
	}
	return snippet
}
