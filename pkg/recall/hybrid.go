package recall

import (
	"sort"

	"quill/pkg/models"
)

// Hybrid combines fuzzy and semantic search into one ranked result set.
//
// Each sub-search is capped at twice the requested limit. Results are merged
// by entry identity: an entry found by both strategies scores
// max(existing, new) + weight*new and is marked "hybrid"; single-source
// results keep their score scaled by that source's weight. The asymmetric
// weighting rewards agreement between strategies without requiring their
// rankings to coincide.
func (e *Engine) Hybrid(query string, entries []models.Entry, opts Options) ([]Hit, error) {
	opts = opts.withDefaults()
	subOpts := opts
	subOpts.Limit = opts.Limit * 2

	fuzzyHits := SearchEntries(query, entries, subOpts)
	semanticHits, err := e.Search(query, entries, subOpts)
	if err != nil {
		return nil, err
	}

	combined := map[string]Hit{}
	for _, hit := range append(fuzzyHits, semanticHits...) {
		weight := opts.SemanticWeight
		if hit.Source == "fuzzy" {
			weight = opts.FuzzyWeight
		}
		key := hit.Entry.Identifier
		if key == "" {
			key = hit.Entry.Date + ":" + hit.Entry.Time + ":" + string(hit.Entry.EntryType)
		}

		existing, ok := combined[key]
		if !ok {
			hit.Score *= weight
			combined[key] = hit
			continue
		}
		merged := existing
		if hit.Score > merged.Score {
			merged.Score = hit.Score
		}
		merged.Score += weight * hit.Score
		merged.MatchedDate = existing.MatchedDate || hit.MatchedDate
		if merged.Snippet == "" {
			merged.Snippet = hit.Snippet
		}
		merged.Source = "hybrid"
		combined[key] = merged
	}

	results := make([]Hit, 0, len(combined))
	for _, hit := range combined {
		results = append(results, hit)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
