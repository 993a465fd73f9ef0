// Package di provides dependency injection configuration for the engine.
package di

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/config"
	"github.com/channelbriefapp/channelbrief-engine/internal/di/providers"
	"github.com/channelbriefapp/channelbrief-engine/internal/integrity"
	"github.com/channelbriefapp/channelbrief-engine/internal/logger"
	"github.com/channelbriefapp/channelbrief-engine/internal/media/thumbs"
	enginesync "github.com/channelbriefapp/channelbrief-engine/internal/sync"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideTxnManager)
	do.Provide(injector, providers.ProvideRepository)

	// Integrity layer
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideRecovery)
	do.Provide(injector, providers.ProvideBootstrap)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Sync layer
	do.Provide(injector, providers.ProvideRemoteClient)
	do.Provide(injector, providers.ProvideThumbnailer)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the engine is serving.
// This triggers lazy initialization in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*slog.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*txn.Manager](injector)
	_ = do.MustInvoke[*cache.Repository](injector)
	_ = do.MustInvoke[*integrity.Validator](injector)
	_ = do.MustInvoke[*integrity.Recovery](injector)
	_ = do.MustInvoke[*providers.Bootstrap](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*thumbs.Generator](injector)
	_ = do.MustInvoke[*enginesync.Orchestrator](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild an empty search index from cached records if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
