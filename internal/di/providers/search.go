package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/config"
	"github.com/channelbriefapp/channelbrief-engine/internal/logger"
	"github.com/channelbriefapp/channelbrief-engine/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability. Index
// is nil when search is disabled by configuration.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve summary index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search index disabled by configuration")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.New(search.Options{
		DataPath: cfg.Search.Path,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	// Keep the index in step with cache writes.
	repo := do.MustInvoke[*cache.Repository](i)
	repo.SetSearchIndexer(index)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from cached records.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	if indexHandle.Index == nil {
		return
	}
	repo := do.MustInvoke[*cache.Repository](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	scope := repo.LastOwner(ctx)
	if scope == "" {
		return
	}
	videos := repo.Videos(ctx, scope)
	if len(videos) == 0 {
		return
	}

	log.Info("Search index is empty but videos are cached, triggering reindex",
		"video_count", len(videos),
	)

	go func() {
		if err := indexHandle.IndexVideos(context.Background(), videos); err != nil {
			log.Error("Initial search reindex failed", "error", err)
		} else {
			count, _ := indexHandle.DocumentCount()
			log.Info("Initial search reindex completed", "documents", count)
		}
	}()
}
