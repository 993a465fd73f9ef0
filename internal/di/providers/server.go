package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/api"
	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/config"
	"github.com/channelbriefapp/channelbrief-engine/internal/integrity"
	"github.com/channelbriefapp/channelbrief-engine/internal/logger"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	enginesync "github.com/channelbriefapp/channelbrief-engine/internal/sync"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the ops HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	repo := do.MustInvoke[*cache.Repository](i)
	orchestrator := do.MustInvoke[*enginesync.Orchestrator](i)
	txns := do.MustInvoke[*txn.Manager](i)
	validator := do.MustInvoke[*integrity.Validator](i)
	recovery := do.MustInvoke[*integrity.Recovery](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	// Recovery must have settled the store before the first request lands.
	_ = do.MustInvoke[*Bootstrap](i)

	sseHandler := sse.NewHandler(sseHandle.Manager, log.Logger)

	handler := api.NewServer(api.Deps{
		KV:           storeHandle.KV,
		Repo:         repo,
		Orchestrator: orchestrator,
		Txns:         txns,
		Validator:    validator,
		Recovery:     recovery,
		Search:       searchHandle.Index,
		SSEManager:   sseHandle.Manager,
		SSEHandler:   sseHandler,
		Logger:       log.Logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("Ops API starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Ops API error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
