package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/channelbriefapp/channelbrief-engine/internal/errors"
	"github.com/channelbriefapp/channelbrief-engine/internal/metrics"
	"github.com/channelbriefapp/channelbrief-engine/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchSummaries",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search cached summaries",
		Description: "Full-text search over cached video titles and summaries; works offline",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching cached summaries.
type SearchInput struct {
	Query         string `query:"q" validate:"required,min=1,max=200" doc:"Search query"`
	ChannelID     string `query:"channelId" validate:"omitempty,max=100" doc:"Only videos from this channel"`
	ProcessedOnly bool   `query:"processedOnly" doc:"Only videos with a finished summary"`
	Limit         int    `query:"limit" validate:"omitempty,gte=1,lte=100" doc:"Max results (default 20)"`
	Offset        int    `query:"offset" validate:"omitempty,gte=0" doc:"Pagination offset (default 0)"`
	SortBy        string `query:"sort" validate:"omitempty,oneof=relevance recent title" doc:"Sort order (default relevance)"`
	Facets        bool   `query:"facets" doc:"Include per-channel hit counts"`
}

// SearchOutput wraps search results for Huma.
type SearchOutput struct {
	Body search.Result
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if s.search == nil {
		return nil, domainerrors.Internal("search index not configured")
	}
	if input.Query == "" {
		return nil, domainerrors.Validation("query must not be empty")
	}

	params := search.DefaultParams()
	params.Query = input.Query
	params.ChannelID = input.ChannelID
	params.ProcessedOnly = input.ProcessedOnly
	params.IncludeFacets = input.Facets
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Offset = input.Offset
	if input.SortBy != "" {
		params.SortBy = input.SortBy
	}

	result, err := s.search.Search(ctx, params)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(metrics.SearchStatusError).Inc()
		s.logger.Error("search failed", "error", err, "query", input.Query)
		return nil, domainerrors.Internal("search failed")
	}

	metrics.SearchQueriesTotal.WithLabelValues(metrics.SearchStatusSuccess).Inc()
	return &SearchOutput{Body: *result}, nil
}
