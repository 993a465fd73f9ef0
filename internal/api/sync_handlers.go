package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/sync"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "triggerSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync",
		Summary:     "Run a sync pass",
		Description: "Fetches new summaries from the backend and merges them into the cache. " +
			"Falls back to cached data when the backend is unreachable.",
		Tags: []string{"Sync"},
	}, s.handleTriggerSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncState",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync",
		Summary:     "Sync state",
		Description: "Last sync time and whether the next sync will be full or incremental",
		Tags:        []string{"Sync"},
	}, s.handleGetSyncState)
}

// === DTOs ===

// TriggerSyncInput carries the sync request body.
type TriggerSyncInput struct {
	Body struct {
		UserID string `json:"userId" validate:"omitempty,max=100" doc:"User to sync for; empty returns cached data only"`
	}
}

// TriggerSyncOutput wraps a sync result for Huma.
type TriggerSyncOutput struct {
	Body sync.Result
}

// SyncStateInput selects the scope to inspect.
type SyncStateInput struct {
	UserID string `query:"userId" validate:"omitempty,max=100" doc:"Scope to inspect; defaults to the current cache owner"`
}

// SyncStateResponse describes the sync position of a scope.
type SyncStateResponse struct {
	Owner              string    `json:"owner,omitempty" doc:"Current cache owner"`
	LastSync           time.Time `json:"lastSync" doc:"Last successful sync, zero if never"`
	ChannelListChanged bool      `json:"channelListChanged" doc:"Whether the sticky channel-change flag is set"`
	NextSyncFull       bool      `json:"nextSyncFull" doc:"Whether the next sync will fetch the full window"`
}

// SyncStateOutput wraps the response for Huma.
type SyncStateOutput struct {
	Body SyncStateResponse
}

// === Handlers ===

func (s *Server) handleTriggerSync(ctx context.Context, input *TriggerSyncInput) (*TriggerSyncOutput, error) {
	result, err := s.orchestrator.Sync(ctx, input.Body.UserID)
	if err != nil {
		return nil, err
	}
	return &TriggerSyncOutput{Body: *result}, nil
}

func (s *Server) handleGetSyncState(ctx context.Context, input *SyncStateInput) (*SyncStateOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SyncStateOutput{Body: SyncStateResponse{NextSyncFull: true}}, nil
	}

	lastSync := s.repo.LastSyncAt(ctx, scope)
	changed := s.repo.ChannelListChanged(ctx, scope)
	return &SyncStateOutput{Body: SyncStateResponse{
		Owner:              scope.String(),
		LastSync:           lastSync,
		ChannelListChanged: changed,
		NextSyncFull:       changed || lastSync.IsZero(),
	}}, nil
}
