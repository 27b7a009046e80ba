package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/solestoreapp/solestore-client/internal/domain"
)

func (s *Server) registerFavoritesRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getFavorites",
		Method:      http.MethodGet,
		Path:        "/api/favorites",
		Summary:     "Get favorites",
		Tags:        []string{"Favorites"},
	}, s.handleGetFavorites)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFavorite",
		Method:      http.MethodPost,
		Path:        "/api/favorites/toggle",
		Summary:     "Toggle one favorite",
		Tags:        []string{"Favorites"},
	}, s.handleToggleFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID: "batchFavorites",
		Method:      http.MethodPost,
		Path:        "/api/favorites/batch",
		Summary:     "Apply a batch of desired favorite states",
		Description: "Per shoe, the server recomputes whether the desired state differs from persisted membership and only then creates or deletes. Replays are no-ops.",
		Tags:        []string{"Favorites"},
	}, s.handleBatchFavorites)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearFavorites",
		Method:      http.MethodDelete,
		Path:        "/api/favorites/clear",
		Summary:     "Clear all favorites",
		Tags:        []string{"Favorites"},
	}, s.handleClearFavorites)
}

// FavoritesListOutput is the bare-array shape of GET /favorites.
type FavoritesListOutput struct {
	Body []domain.FavoriteEntry
}

// FavoritesResultOutput wraps the {favorites, likeCounts} pair returned by
// every mutating favorites endpoint.
type FavoritesResultOutput struct {
	Body domain.FavoritesResult
}

// GetFavoritesInput carries the session user.
type GetFavoritesInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
}

func (s *Server) handleGetFavorites(ctx context.Context, input *GetFavoritesInput) (*FavoritesListOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	favorites, err := s.backend.Favorites(ctx, input.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	if favorites == nil {
		favorites = []domain.FavoriteEntry{}
	}
	return &FavoritesListOutput{Body: favorites}, nil
}

// ToggleFavoriteInput is the POST /favorites/toggle payload.
type ToggleFavoriteInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
	Body   struct {
		ShoeID int64 `json:"shoeId" minimum:"1"`
	}
}

func (s *Server) handleToggleFavorite(ctx context.Context, input *ToggleFavoriteInput) (*FavoritesResultOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	result, err := s.backend.Toggle(ctx, input.UserID, input.Body.ShoeID)
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Debug("favorite toggled", "user_id", input.UserID, "shoe_id", input.Body.ShoeID)
	return &FavoritesResultOutput{Body: *result}, nil
}

// BatchFavoritesInput is the POST /favorites/batch payload. Keys arrive as
// decimal shoe ids; the client filters out malformed entries before sending.
type BatchFavoritesInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
	Body   struct {
		UserID           int64          `json:"userId"`
		PendingFavorites map[int64]bool `json:"pendingFavorites"`
	}
}

func (s *Server) handleBatchFavorites(ctx context.Context, input *BatchFavoritesInput) (*FavoritesResultOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	result, err := s.backend.ApplyBatch(ctx, input.UserID, input.Body.PendingFavorites)
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Debug("favorites batch applied", "user_id", input.UserID, "entries", len(input.Body.PendingFavorites))
	return &FavoritesResultOutput{Body: *result}, nil
}

// ClearFavoritesInput is the DELETE /favorites/clear payload.
type ClearFavoritesInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
	Body   struct {
		UserID int64 `json:"userId"`
	}
}

func (s *Server) handleClearFavorites(ctx context.Context, input *ClearFavoritesInput) (*FavoritesResultOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	result, err := s.backend.ClearAll(ctx, input.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Debug("favorites cleared", "user_id", input.UserID)
	return &FavoritesResultOutput{Body: *result}, nil
}
