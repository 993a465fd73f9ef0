package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for summary documents.
//
// Priorities:
//  1. Full-text search over summary text with English stemming
//  2. Boosted title matches
//  3. Exact channel filtering
//  4. Recency sorting via created_at
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// Title - primary search target, stored for result display.
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	// Summary - searchable with highlighting; stored so hits can show a
	// snippet without a cache round trip.
	summaryFieldMapping := bleve.NewTextFieldMapping()
	summaryFieldMapping.Analyzer = en.AnalyzerName
	summaryFieldMapping.Store = true
	summaryFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("summary", summaryFieldMapping)

	// ID - stored but not analyzed.
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Channel - exact filtering and faceting.
	channelFieldMapping := bleve.NewTextFieldMapping()
	channelFieldMapping.Analyzer = keyword.Name
	channelFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("channel_id", channelFieldMapping)

	// Processed - filter for "only videos with a finished summary".
	processedFieldMapping := bleve.NewBooleanFieldMapping()
	processedFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("processed", processedFieldMapping)

	// Timestamps - range filtering and recency sorting.
	publishedFieldMapping := bleve.NewNumericFieldMapping()
	publishedFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("published_at", publishedFieldMapping)

	createdFieldMapping := bleve.NewNumericFieldMapping()
	createdFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
