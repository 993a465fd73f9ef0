package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/channelbriefapp/channelbrief-engine/internal/normalize"
)

// Params configures a search query.
type Params struct {
	Query     string // User's search terms
	ChannelID string // Filter to one channel (empty = all)

	ProcessedOnly bool // Only videos with a finished summary

	// Publication window, Unix millis (0 = unbounded)
	PublishedAfter  int64
	PublishedBefore int64

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "recent", "title"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool // Per-channel hit counts
	Highlight     bool // Include match highlighting
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// Result represents the search results.
type Result struct {
	Query    string       `json:"query"`
	Total    uint64       `json:"total"`
	TookMs   int64        `json:"took_ms"`
	Hits     []Hit        `json:"hits"`
	Channels []FacetCount `json:"channels,omitempty"`
}

// Hit represents a single matched summary.
type Hit struct {
	VideoID     string            `json:"videoId"`
	ChannelID   string            `json:"channelId"`
	Score       float64           `json:"score"`
	Title       string            `json:"title"`
	Summary     string            `json:"summary,omitempty"`
	Processed   bool              `json:"processed"`
	PublishedAt int64             `json:"publishedAt,omitempty"`
	CreatedAt   int64             `json:"createdAt,omitempty"`
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a query against the summary index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("channel_id", bleve.NewFacetRequest("channel_id", 20))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("summary")
	}

	searchRequest.Fields = []string{
		"id", "channel_id", "title", "summary", "processed",
		"published_at", "created_at",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			VideoID: hit.ID,
			Score:   hit.Score,
		}

		if c, ok := hit.Fields["channel_id"].(string); ok {
			h.ChannelID = c
		}
		if t, ok := hit.Fields["title"].(string); ok {
			h.Title = t
		}
		if sm, ok := hit.Fields["summary"].(string); ok {
			h.Summary = sm
		}
		if p, ok := hit.Fields["processed"].(bool); ok {
			h.Processed = p
		}
		if pa, ok := hit.Fields["published_at"].(float64); ok {
			h.PublishedAt = int64(pa)
		}
		if ca, ok := hit.Fields["created_at"].(float64); ok {
			h.CreatedAt = int64(ca)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		if channelFacet, ok := searchResult.Facets["channel_id"]; ok {
			for _, term := range channelFacet.Terms.Terms() {
				result.Channels = append(result.Channels, FacetCount{
					Value: term.Term,
					Count: term.Count,
				})
			}
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	// Main text query over title and summary. Title matches are boosted:
	// a query naming a video should rank it above summaries that merely
	// mention the words.
	if params.Query != "" {
		folded := normalize.FoldTerm(params.Query)
		textQueries := []query.Query{}

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		summaryMatch := bleve.NewMatchQuery(params.Query)
		summaryMatch.SetField("summary")
		summaryMatch.SetBoost(1.5)
		textQueries = append(textQueries, summaryMatch)

		// Fuzzy matching for typo tolerance on the title.
		fuzzyQuery := bleve.NewFuzzyQuery(folded)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for as-you-type search (minimum 2 chars).
		if len(folded) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(folded))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Channel filter (exact match).
	if params.ChannelID != "" {
		cq := bleve.NewTermQuery(params.ChannelID)
		cq.SetField("channel_id")
		queries = append(queries, cq)
	}

	// Processed filter.
	if params.ProcessedOnly {
		pq := bleve.NewBoolFieldQuery(true)
		pq.SetField("processed")
		queries = append(queries, pq)
	}

	// Publication window.
	if params.PublishedAfter > 0 || params.PublishedBefore > 0 {
		min := float64(params.PublishedAfter)
		max := float64(params.PublishedBefore)
		if params.PublishedBefore == 0 {
			max = math.MaxFloat64
		}
		rangeQuery := bleve.NewNumericRangeQuery(&min, &max)
		rangeQuery.SetField("published_at")
		queries = append(queries, rangeQuery)
	}

	// Combine all queries with AND.
	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params Params) {
	switch params.SortBy {
	case "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		// Relevance (score) is default - Bleve handles this.
		req.SortBy([]string{"-_score"})
	}
}
