package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/config"
	"github.com/channelbriefapp/channelbrief-engine/internal/logger"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/store/sqlite"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the key-value store with shutdown capability.
type StoreHandle struct {
	store.KV
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the key-value store for the configured backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		kv  store.KV
		err error
	)
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		kv, err = sqlite.Open(filepath.Join(cfg.Cache.DataPath, "cache.db"), log.Logger)
	default:
		kv, err = store.OpenBadger(filepath.Join(cfg.Cache.DataPath, "db"), log.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Cache.Backend, err)
	}

	log.Info("Store initialized", "backend", cfg.Cache.Backend, "path", cfg.Cache.DataPath)

	return &StoreHandle{KV: kv}, nil
}

// ProvideTxnManager provides the transaction manager.
func ProvideTxnManager(i do.Injector) (*txn.Manager, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return txn.NewManager(storeHandle.KV, log.Logger), nil
}
