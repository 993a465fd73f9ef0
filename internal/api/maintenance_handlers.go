package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/channelbriefapp/channelbrief-engine/internal/errors"
	"github.com/channelbriefapp/channelbrief-engine/internal/integrity"
)

func (s *Server) registerMaintenanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "validateCache",
		Method:      http.MethodPost,
		Path:        "/api/v1/validate",
		Summary:     "Validate and repair the cache",
		Description: "Scans every stored record, deletes unrecoverable ones, and downgrades " +
			"records whose summary can be refetched. Returns the scan report.",
		Tags: []string{"Maintenance"},
	}, s.handleValidateCache)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPendingTransactions",
		Method:      http.MethodGet,
		Path:        "/api/v1/transactions",
		Summary:     "List in-flight transactions",
		Description: "Transaction log entries not yet committed. Outside of a crash window this is empty.",
		Tags:        []string{"Maintenance"},
	}, s.handleListPendingTransactions)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearCache",
		Method:      http.MethodPost,
		Path:        "/api/v1/cache/clear",
		Summary:     "Clear the cache",
		Description: "Removes everything the scope owns. The manual-reset affordance for unrecoverable corruption.",
		Tags:        []string{"Maintenance"},
	}, s.handleClearCache)
}

// === DTOs ===

// ValidateInput selects the scope to validate.
type ValidateInput struct {
	UserID string `query:"userId" validate:"omitempty,max=100" doc:"Scope to validate; defaults to the current cache owner"`
}

// ValidateResponse combines the scan report with the repair outcome.
type ValidateResponse struct {
	Report   integrity.Report `json:"report" doc:"Validation scan result"`
	Repaired bool             `json:"repaired" doc:"True when repair left the cache healthy"`
}

// ValidateOutput wraps the response for Huma.
type ValidateOutput struct {
	Body ValidateResponse
}

// PendingTransaction is the safe-to-expose view of a log entry: staged
// values and checksums stay out of the response.
type PendingTransaction struct {
	TransactionID string    `json:"transactionId" doc:"Transaction identifier"`
	Kind          string    `json:"operationKind" doc:"What the transaction was doing"`
	StartedAt     time.Time `json:"startedAt" doc:"When the transaction began"`
	State         string    `json:"state" doc:"Transaction state"`
	KeysStaged    int       `json:"keysStaged" doc:"Number of keys the transaction touches"`
}

// PendingTransactionsResponse lists in-flight transactions.
type PendingTransactionsResponse struct {
	Transactions []PendingTransaction `json:"transactions"`
}

// PendingTransactionsOutput wraps the response for Huma.
type PendingTransactionsOutput struct {
	Body PendingTransactionsResponse
}

// ClearCacheInput selects the scope to wipe.
type ClearCacheInput struct {
	UserID string `query:"userId" validate:"omitempty,max=100" doc:"Scope to clear; defaults to the current cache owner"`
	All    bool   `query:"all" doc:"Wipe every scope and the owner marker (factory reset)"`
}

// ClearCacheResponse acknowledges the wipe.
type ClearCacheResponse struct {
	Cleared bool `json:"cleared"`
}

// ClearCacheOutput wraps the response for Huma.
type ClearCacheOutput struct {
	Body ClearCacheResponse
}

// === Handlers ===

func (s *Server) handleValidateCache(ctx context.Context, input *ValidateInput) (*ValidateOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.NotFound("no cache owner")
	}

	report := s.validator.ValidateCache(ctx, scope)
	repaired := s.recovery.ValidateAndRepair(ctx, scope)

	return &ValidateOutput{Body: ValidateResponse{
		Report:   report,
		Repaired: repaired,
	}}, nil
}

func (s *Server) handleListPendingTransactions(ctx context.Context, _ *struct{}) (*PendingTransactionsOutput, error) {
	entries, err := s.txns.Pending(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingTransaction, 0, len(entries))
	for _, entry := range entries {
		pending = append(pending, PendingTransaction{
			TransactionID: entry.TransactionID,
			Kind:          string(entry.Kind),
			StartedAt:     entry.StartedAt,
			State:         string(entry.State),
			KeysStaged:    len(entry.Ops),
		})
	}
	return &PendingTransactionsOutput{Body: PendingTransactionsResponse{Transactions: pending}}, nil
}

func (s *Server) handleClearCache(ctx context.Context, input *ClearCacheInput) (*ClearCacheOutput, error) {
	if input.All {
		if err := s.repo.ClearAll(ctx); err != nil {
			return nil, err
		}
		return &ClearCacheOutput{Body: ClearCacheResponse{Cleared: true}}, nil
	}

	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.NotFound("no cache owner")
	}

	if err := s.repo.ClearScope(ctx, scope); err != nil {
		return nil, err
	}
	return &ClearCacheOutput{Body: ClearCacheResponse{Cleared: true}}, nil
}
