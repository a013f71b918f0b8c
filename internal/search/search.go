// Package search implements library lookup over the store's /library
// documents: a scored substring and fuzzy search for typo-tolerant
// queries, plus exact-field filtering.
package search

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/sonora-audio/sonora/internal/store"
)

// Item mirrors the subset of a /library/<id> document that search ranks
// against. Unknown fields are ignored.
type Item struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Genre  string `json:"genre"`
}

// Engine ranks library items for a query. It holds no state of its own;
// every call re-lists the store's library prefix.
type Engine struct {
	st        store.Store
	threshold float64
	maxResult int
}

// New constructs a search Engine. fuzzyThreshold (0..1) sets the score,
// fuzzyThreshold*10, given to an item whose title matches the query only
// as a fuzzy subsequence; it is not a cutoff on match quality, and a
// threshold of 0 leaves such items out. maxResults bounds every returned
// result set.
func New(st store.Store, fuzzyThreshold float64, maxResults int) *Engine {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &Engine{st: st, threshold: fuzzyThreshold, maxResult: maxResults}
}

type scored struct {
	item  Item
	score float64
}

// Search returns library items ranked by a blend of substring and fuzzy
// matching, highest score first. An empty query returns no results.
func (e *Engine) Search(ctx context.Context, query string) ([]Item, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	items, err := e.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var results []scored
	for _, it := range items {
		if s := e.score(it, q); s > 0 {
			results = append(results, scored{item: it, score: s})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	out := make([]Item, 0, len(results))
	for _, r := range results {
		out = append(out, r.item)
		if len(out) >= e.maxResult {
			break
		}
	}
	return out, nil
}

// Filter returns library items whose field equals value exactly (a
// case-insensitive match), e.g. filtering by artist or genre.
func (e *Engine) Filter(ctx context.Context, field, value string) ([]Item, error) {
	items, err := e.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	value = strings.ToLower(value)

	var out []Item
	for _, it := range items {
		var v string
		switch strings.ToLower(field) {
		case "artist":
			v = it.Artist
		case "album":
			v = it.Album
		case "genre":
			v = it.Genre
		case "title":
			v = it.Title
		default:
			return nil, nil
		}
		if strings.ToLower(v) == value {
			out = append(out, it)
			if len(out) >= e.maxResult {
				break
			}
		}
	}
	return out, nil
}

func (e *Engine) score(it Item, queryLower string) float64 {
	score := 0.0

	titleLower := strings.ToLower(it.Title)
	if strings.Contains(titleLower, queryLower) {
		score += 10.0
	}
	if d := fuzzy.LevenshteinDistance(queryLower, titleLower); len(queryLower) > 0 && d <= len(queryLower)/2+1 {
		score += float64(len(queryLower) - d)
	}

	if strings.Contains(strings.ToLower(it.Artist), queryLower) {
		score += 7.0
	}
	if strings.Contains(strings.ToLower(it.Album), queryLower) {
		score += 5.0
	}

	if score == 0 && fuzzy.MatchFold(queryLower, titleLower) {
		score = e.threshold * 10.0
	}

	return score
}

func (e *Engine) loadAll(ctx context.Context) ([]Item, error) {
	paths, err := e.st.List(ctx, store.LibraryPrefix)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		rec, ok, err := e.st.Get(ctx, p)
		if err != nil || !ok || rec.Deleted() {
			continue
		}
		var it Item
		if err := json.Unmarshal(rec.Data, &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}
