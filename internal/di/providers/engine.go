package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/config"
	"github.com/channelbriefapp/channelbrief-engine/internal/integrity"
	"github.com/channelbriefapp/channelbrief-engine/internal/logger"
	"github.com/channelbriefapp/channelbrief-engine/internal/media/thumbs"
	"github.com/channelbriefapp/channelbrief-engine/internal/remote"
	enginesync "github.com/channelbriefapp/channelbrief-engine/internal/sync"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// ProvideRepository provides the cache repository.
func ProvideRepository(i do.Injector) (*cache.Repository, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	txns := do.MustInvoke[*txn.Manager](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	retention := cache.RetentionPolicy{
		Enabled: cfg.Cache.RetentionEnabled,
		MaxAge:  time.Duration(cfg.Cache.RetentionDays) * 24 * time.Hour,
	}

	return cache.NewRepository(storeHandle.KV, txns, retention, log.Logger, sseHandle.Manager), nil
}

// ProvideValidator provides the cache integrity validator.
func ProvideValidator(i do.Injector) (*integrity.Validator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return integrity.NewValidator(storeHandle.KV, log.Logger), nil
}

// ProvideRecovery provides the validate-and-repair engine.
func ProvideRecovery(i do.Injector) (*integrity.Recovery, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validator := do.MustInvoke[*integrity.Validator](i)
	repo := do.MustInvoke[*cache.Repository](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return integrity.NewRecovery(storeHandle.KV, validator, repo, cfg.Cache.ResetFraction, log.Logger, sseHandle.Manager), nil
}

// ProvideRemoteClient provides the ChannelBrief backend API client.
func ProvideRemoteClient(i do.Injector) (remote.API, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return remote.New(remote.Config{
		BaseURL:           cfg.Remote.BaseURL,
		APIToken:          cfg.Remote.APIToken,
		Timeout:           cfg.Remote.Timeout,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		Burst:             cfg.Remote.Burst,
	}, log.Logger), nil
}

// ProvideThumbnailer provides the channel thumbnail BlurHash generator.
func ProvideThumbnailer(i do.Injector) (*thumbs.Generator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return thumbs.NewGenerator(log.Logger), nil
}

// ProvideOrchestrator provides the sync orchestrator.
func ProvideOrchestrator(i do.Injector) (*enginesync.Orchestrator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	repo := do.MustInvoke[*cache.Repository](i)
	api := do.MustInvoke[remote.API](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	thumbnailer := do.MustInvoke[*thumbs.Generator](i)
	log := do.MustInvoke[*logger.Logger](i)

	orch := enginesync.New(repo, api, cfg.Cache.PageSize, sseHandle.Manager, log.Logger)
	orch.SetThumbnailer(thumbnailer)
	return orch, nil
}

// Bootstrap holds the result of the startup recovery pass.
type Bootstrap struct {
	TxnReport txn.RecoveryReport
	Repaired  bool
}

// ProvideBootstrap rolls pending transactions forward or back and repairs
// the cache before anything reads from it. Ordering matters: transaction
// recovery runs first so the integrity scan sees settled values.
func ProvideBootstrap(i do.Injector) (*Bootstrap, error) {
	txns := do.MustInvoke[*txn.Manager](i)
	recovery := do.MustInvoke[*integrity.Recovery](i)
	repo := do.MustInvoke[*cache.Repository](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx := context.Background()

	report, err := txns.Recover(ctx)
	if err != nil {
		return nil, err
	}
	if report.EntriesRecovered > 0 {
		log.Info("Recovered interrupted transactions",
			"entries", report.EntriesRecovered,
			"keys_kept_old", report.KeysKeptOld,
			"keys_kept_new", report.KeysKeptNew,
			"keys_discarded", report.KeysDiscarded,
		)
	}

	bootstrap := &Bootstrap{TxnReport: report, Repaired: true}

	scope := repo.LastOwner(ctx)
	if scope == "" {
		// Fresh install, nothing to validate yet.
		return bootstrap, nil
	}

	bootstrap.Repaired = recovery.ValidateAndRepair(ctx, scope)
	if !bootstrap.Repaired {
		log.Warn("Cache left unhealthy after startup repair", "scope", scope)
	}
	return bootstrap, nil
}
