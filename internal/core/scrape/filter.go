package scrape

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// FilterRecords keeps the records whose titles fuzzy-match query,
// preserving resolution order. An empty query keeps everything.
func FilterRecords(records []ItemRecord, query string) []ItemRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}
	titles := make([]string, len(records))
	for i, r := range records {
		titles[i] = r.Title
	}
	keep := make(map[int]bool)
	for _, m := range fuzzy.Find(query, titles) {
		keep[m.Index] = true
	}
	out := make([]ItemRecord, 0, len(keep))
	for i, r := range records {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}
