package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/solestoreapp/solestore-client/internal/domain"
)

func (s *Server) registerCartRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCart",
		Method:      http.MethodGet,
		Path:        "/api/cart",
		Summary:     "Get cart",
		Tags:        []string{"Cart"},
	}, s.handleGetCart)

	huma.Register(s.api, huma.Operation{
		OperationID: "addCartItem",
		Method:      http.MethodPost,
		Path:        "/api/cart",
		Summary:     "Add to cart",
		Tags:        []string{"Cart"},
	}, s.handleAddCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCartItem",
		Method:      http.MethodPut,
		Path:        "/api/cart",
		Summary:     "Update line item quantity",
		Tags:        []string{"Cart"},
	}, s.handleUpdateCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeCartItem",
		Method:      http.MethodDelete,
		Path:        "/api/cart/item/{id}",
		Summary:     "Remove line item",
		Tags:        []string{"Cart"},
	}, s.handleRemoveCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearCart",
		Method:      http.MethodDelete,
		Path:        "/api/cart/clear",
		Summary:     "Clear cart",
		Tags:        []string{"Cart"},
	}, s.handleClearCart)
}

// CartResponse is the {items: [...]} envelope every cart endpoint returns.
type CartResponse struct {
	Items []domain.CartLineItem `json:"items"`
}

// CartOutput wraps the cart response for Huma.
type CartOutput struct {
	Body CartResponse
}

// MessageOutput wraps the {message} shape of delete endpoints.
type MessageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

func message(msg string) *MessageOutput {
	out := &MessageOutput{}
	out.Body.Message = msg
	return out
}

func cartOutput(items []domain.CartLineItem) *CartOutput {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return &CartOutput{Body: CartResponse{Items: items}}
}

// GetCartInput carries the session user.
type GetCartInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
}

func (s *Server) handleGetCart(ctx context.Context, input *GetCartInput) (*CartOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	items, err := s.backend.Cart(ctx, input.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	return cartOutput(items), nil
}

// AddCartItemInput is the POST /cart payload.
type AddCartItemInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
	Body   struct {
		ShoeID   int64 `json:"shoeId" minimum:"1"`
		Size     int   `json:"size" minimum:"1"`
		Quantity int   `json:"quantity" minimum:"1"`
	}
}

func (s *Server) handleAddCartItem(ctx context.Context, input *AddCartItemInput) (*CartOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	items, err := s.backend.AddCartItem(ctx, input.UserID, input.Body.ShoeID, input.Body.Size, input.Body.Quantity)
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Debug("cart item added", "user_id", input.UserID, "shoe_id", input.Body.ShoeID)
	return cartOutput(items), nil
}

// UpdateCartItemInput is the PUT /cart payload.
type UpdateCartItemInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
	Body   struct {
		ItemID   int64 `json:"itemId" minimum:"1"`
		Quantity int   `json:"quantity" minimum:"1"`
	}
}

func (s *Server) handleUpdateCartItem(ctx context.Context, input *UpdateCartItemInput) (*CartOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	items, err := s.backend.UpdateCartItem(ctx, input.UserID, input.Body.ItemID, input.Body.Quantity)
	if err != nil {
		return nil, mapError(err)
	}
	return cartOutput(items), nil
}

// RemoveCartItemInput identifies the line item to delete.
type RemoveCartItemInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
	ID     int64 `path:"id" doc:"Line item id"`
}

func (s *Server) handleRemoveCartItem(ctx context.Context, input *RemoveCartItemInput) (*MessageOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	if err := s.backend.RemoveCartItem(ctx, input.UserID, input.ID); err != nil {
		return nil, mapError(err)
	}
	return message("item removed"), nil
}

// ClearCartInput carries the session user.
type ClearCartInput struct {
	UserID int64 `header:"X-User-ID" doc:"Session user id"`
}

func (s *Server) handleClearCart(ctx context.Context, input *ClearCartInput) (*MessageOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	if err := s.backend.ClearCart(ctx, input.UserID); err != nil {
		return nil, mapError(err)
	}
	s.logger.Debug("cart cleared", "user_id", input.UserID)
	return message("cart cleared"), nil
}
