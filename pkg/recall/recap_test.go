package recall_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quill/pkg/models"
	"quill/pkg/recall"
)

func TestFallbackSummarizerPicksLongestSentences(t *testing.T) {
	s := recall.NewFallbackSummarizer(2)
	summary := s.Summarize([]string{
		"Short. This was by far the longest and most detailed sentence of the week!",
		"A medium length thought about dinner.",
	})
	require.Contains(t, summary, "longest and most detailed sentence")
	require.Contains(t, summary, "medium length thought")
	require.NotContains(t, summary, "Short.")
}

func TestFallbackSummarizerDeduplicates(t *testing.T) {
	s := recall.NewFallbackSummarizer(4)
	summary := s.Summarize([]string{
		"Same sentence repeated today.",
		"Same sentence repeated today.",
	})
	require.Equal(t, "Same sentence repeated today.", summary)
}

func TestFallbackSummarizerEmptyInput(t *testing.T) {
	s := recall.NewFallbackSummarizer(0)
	require.Equal(t, "No entries available to summarise.", s.Summarize(nil))
}

func TestRecentRecapsWeeklyBuckets(t *testing.T) {
	now := time.Now()
	entries := []models.Entry{
		entryAt("Monday was productive.", nil, now),
		entryAt("Tuesday even more so.", nil, now),
		entryAt("Last week dragged on forever.", nil, now.AddDate(0, 0, -8)),
	}

	recaps := recall.RecentRecaps(entries, recall.PeriodWeek, 90, nil)
	require.Len(t, recaps, 2)

	weekKey := regexp.MustCompile(`^\d{4}-W\d{2}$`)
	require.Regexp(t, weekKey, recaps[0].Period)
	require.Regexp(t, weekKey, recaps[1].Period)

	// Newest bucket first, with its entry count.
	require.Equal(t, 2, recaps[0].Count)
	require.Equal(t, 1, recaps[1].Count)
	require.Contains(t, recaps[1].Summary, "dragged on forever")
}

func TestRecentRecapsMonthlyBuckets(t *testing.T) {
	entries := []models.Entry{
		entryAt("A note for this month.", nil, time.Now()),
	}
	recaps := recall.RecentRecaps(entries, recall.PeriodMonth, 90, nil)
	require.Len(t, recaps, 1)
	require.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}$`), recaps[0].Period)
}

func TestRecentRecapsRespectsLookback(t *testing.T) {
	entries := []models.Entry{
		entryAt("Recent thought.", nil, time.Now()),
		entryAt("Ancient history.", nil, time.Now().AddDate(0, 0, -120)),
	}
	recaps := recall.RecentRecaps(entries, recall.PeriodWeek, 90, nil)
	require.Len(t, recaps, 1)
	require.NotContains(t, recaps[0].Summary, "Ancient history")
}

func TestRecentRecapsSkipsUnparseableTimestamps(t *testing.T) {
	broken := entryAt("valid content", nil, time.Now())
	broken.Timestamp = "not-a-timestamp"
	recaps := recall.RecentRecaps([]models.Entry{broken}, recall.PeriodWeek, 90, nil)
	require.Empty(t, recaps)
}
