package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	domainerrors "github.com/channelbriefapp/channelbrief-engine/internal/errors"
)

func (s *Server) registerChannelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listChannels",
		Method:      http.MethodGet,
		Path:        "/api/v1/channels",
		Summary:     "List cached channels",
		Tags:        []string{"Channels"},
	}, s.handleListChannels)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeChannelVideos",
		Method:      http.MethodDelete,
		Path:        "/api/v1/channels/{channelId}/videos",
		Summary:     "Remove a channel's cached videos",
		Description: "Drops every cached video belonging to the channel, as after an unsubscribe",
		Tags:        []string{"Channels"},
	}, s.handleRemoveChannelVideos)

	huma.Register(s.api, huma.Operation{
		OperationID: "signalChannelListChanged",
		Method:      http.MethodPost,
		Path:        "/api/v1/channels/changed",
		Summary:     "Signal a channel list change",
		Description: "Forces the next sync to fetch the full window instead of an incremental delta",
		Tags:        []string{"Channels"},
	}, s.handleSignalChannelListChanged)
}

// === DTOs ===

// ListChannelsInput selects the scope for the channel list.
type ListChannelsInput struct {
	UserID string `query:"userId" validate:"omitempty,max=100" doc:"Scope to read; defaults to the current cache owner"`
}

// ListChannelsResponse carries the cached channel list.
type ListChannelsResponse struct {
	Channels []domain.ChannelRecord `json:"channels" doc:"Subscribed channels, sorted by title"`
}

// ListChannelsOutput wraps the response for Huma.
type ListChannelsOutput struct {
	Body ListChannelsResponse
}

// RemoveChannelVideosInput identifies the channel to purge.
type RemoveChannelVideosInput struct {
	UserID    string `query:"userId" validate:"omitempty,max=100" doc:"Scope to modify; defaults to the current cache owner"`
	ChannelID string `path:"channelId" validate:"required,max=100" doc:"Channel identifier"`
}

// RemoveChannelVideosResponse reports what was removed.
type RemoveChannelVideosResponse struct {
	Removed int `json:"removed" doc:"Number of videos removed"`
}

// RemoveChannelVideosOutput wraps the response for Huma.
type RemoveChannelVideosOutput struct {
	Body RemoveChannelVideosResponse
}

// SignalChannelChangeInput selects the scope to flag.
type SignalChannelChangeInput struct {
	UserID string `query:"userId" validate:"omitempty,max=100" doc:"Scope to flag; defaults to the current cache owner"`
}

// SignalChannelChangeResponse acknowledges the flag.
type SignalChannelChangeResponse struct {
	Signaled bool `json:"signaled" doc:"True when the flag was set"`
}

// SignalChannelChangeOutput wraps the response for Huma.
type SignalChannelChangeOutput struct {
	Body SignalChannelChangeResponse
}

// === Handlers ===

func (s *Server) handleListChannels(ctx context.Context, input *ListChannelsInput) (*ListChannelsOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ListChannelsOutput{Body: ListChannelsResponse{Channels: []domain.ChannelRecord{}}}, nil
	}
	return &ListChannelsOutput{Body: ListChannelsResponse{Channels: s.repo.Channels(ctx, scope)}}, nil
}

func (s *Server) handleRemoveChannelVideos(ctx context.Context, input *RemoveChannelVideosInput) (*RemoveChannelVideosOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.NotFound("no cache owner")
	}

	removed, err := s.repo.RemoveChannelVideos(ctx, scope, input.ChannelID)
	if err != nil {
		return nil, err
	}
	return &RemoveChannelVideosOutput{Body: RemoveChannelVideosResponse{Removed: removed}}, nil
}

func (s *Server) handleSignalChannelListChanged(ctx context.Context, input *SignalChannelChangeInput) (*SignalChannelChangeOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.NotFound("no cache owner")
	}

	if err := s.repo.SignalChannelListChanged(ctx, scope); err != nil {
		return nil, err
	}
	return &SignalChannelChangeOutput{Body: SignalChannelChangeResponse{Signaled: true}}, nil
}
