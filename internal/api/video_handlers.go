package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	domainerrors "github.com/channelbriefapp/channelbrief-engine/internal/errors"
)

func (s *Server) registerVideoRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listVideos",
		Method:      http.MethodGet,
		Path:        "/api/v1/videos",
		Summary:     "List cached videos",
		Description: "Returns the cached video summaries for the current owner, newest first",
		Tags:        []string{"Cache"},
	}, s.handleListVideos)

	huma.Register(s.api, huma.Operation{
		OperationID: "getVideo",
		Method:      http.MethodGet,
		Path:        "/api/v1/videos/{videoId}",
		Summary:     "Get one cached video",
		Tags:        []string{"Cache"},
	}, s.handleGetVideo)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCacheStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Cache statistics",
		Description: "Entry counts, approximate size, and the last validation verdict",
		Tags:        []string{"Cache"},
	}, s.handleGetStats)
}

// === DTOs ===

// ListVideosInput contains parameters for listing cached videos.
type ListVideosInput struct {
	UserID    string `query:"userId" validate:"omitempty,max=100" doc:"Scope to read; defaults to the current cache owner"`
	ChannelID string `query:"channelId" validate:"omitempty,max=100" doc:"Only videos from this channel"`
	Limit     int    `query:"limit" validate:"omitempty,gte=1,lte=200" doc:"Page size (default 50)"`
	Cursor    string `query:"cursor" validate:"omitempty,max=500" doc:"Opaque cursor from a previous page"`
}

// ListVideosResponse is one page of cached videos.
type ListVideosResponse struct {
	Videos     []domain.VideoRecord `json:"videos" doc:"Video summaries, newest first"`
	Total      int                  `json:"total" doc:"Total cached videos matching the filter"`
	NextCursor string               `json:"nextCursor,omitempty" doc:"Cursor for the next page, absent on the last page"`
}

// ListVideosOutput wraps the response for Huma.
type ListVideosOutput struct {
	Body ListVideosResponse
}

// GetVideoInput identifies one cached video.
type GetVideoInput struct {
	UserID  string `query:"userId" validate:"omitempty,max=100" doc:"Scope to read; defaults to the current cache owner"`
	VideoID string `path:"videoId" validate:"required,max=100" doc:"Video identifier"`
}

// GetVideoOutput wraps a single video for Huma.
type GetVideoOutput struct {
	Body domain.VideoRecord
}

// StatsInput selects the scope for cache statistics.
type StatsInput struct {
	UserID string `query:"userId" validate:"omitempty,max=100" doc:"Scope to read; defaults to the current cache owner"`
}

// StatsOutput wraps cache statistics for Huma.
type StatsOutput struct {
	Body domain.CacheStats
}

// === Handlers ===

func (s *Server) handleListVideos(ctx context.Context, input *ListVideosInput) (*ListVideosOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ListVideosOutput{Body: ListVideosResponse{Videos: []domain.VideoRecord{}}}, nil
	}

	videos := s.repo.Videos(ctx, scope)
	if input.ChannelID != "" {
		filtered := videos[:0]
		for _, v := range videos {
			if v.ChannelID == input.ChannelID {
				filtered = append(filtered, v)
			}
		}
		videos = filtered
	}
	domain.SortNewestFirst(videos)
	total := len(videos)

	if input.Cursor != "" {
		cursor, err := domain.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, domainerrors.Validation("invalid cursor")
		}
		videos = afterCursor(videos, cursor)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	var nextCursor string
	if len(videos) > limit {
		videos = videos[:limit]
		if c, ok := domain.CursorFor(videos); ok {
			nextCursor = c.Encode()
		}
	}

	return &ListVideosOutput{Body: ListVideosResponse{
		Videos:     videos,
		Total:      total,
		NextCursor: nextCursor,
	}}, nil
}

func (s *Server) handleGetVideo(ctx context.Context, input *GetVideoInput) (*GetVideoOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, v := range s.repo.Videos(ctx, scope) {
			if v.VideoID == input.VideoID {
				return &GetVideoOutput{Body: v}, nil
			}
		}
	}
	return nil, domainerrors.NotFoundf("video %s not cached", input.VideoID)
}

func (s *Server) handleGetStats(ctx context.Context, input *StatsInput) (*StatsOutput, error) {
	scope, ok, err := s.resolveScope(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &StatsOutput{Body: domain.CacheStats{ValidationStatus: s.repo.ValidationStatus()}}, nil
	}
	return &StatsOutput{Body: s.repo.Stats(ctx, scope)}, nil
}

// resolveScope picks the scope a read operates on: an explicit userId wins,
// otherwise the recorded cache owner. ok is false when neither exists.
func (s *Server) resolveScope(ctx context.Context, userID string) (domain.Scope, bool, error) {
	if userID != "" {
		scope, err := domain.ParseScope(userID)
		if err != nil {
			return "", false, err
		}
		return scope, true, nil
	}
	owner := s.repo.LastOwner(ctx)
	if owner == "" {
		return "", false, nil
	}
	return owner, true, nil
}

// afterCursor returns the portion of a newest-first set strictly older than
// the cursor position, using the same tie-break as the cursor itself.
func afterCursor(videos []domain.VideoRecord, c domain.SyncCursor) []domain.VideoRecord {
	for i, v := range videos {
		if v.CreatedAtMillis() < c.LastCreatedAtMillis ||
			(v.CreatedAtMillis() == c.LastCreatedAtMillis && v.VideoID < c.LastVideoID) {
			return videos[i:]
		}
	}
	return nil
}
