package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerRevalidateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "revalidateTag",
		Method:      http.MethodPost,
		Path:        "/api/revalidate",
		Summary:     "Invalidate a cached page tag",
		Description: "The real storefront regenerates server-rendered pages keyed by tag. The dev server just acknowledges and logs.",
		Tags:        []string{"Revalidate"},
	}, s.handleRevalidate)
}

// RevalidateInput names the tag to invalidate.
type RevalidateInput struct {
	Tag string `query:"tag" minLength:"1" doc:"Cache tag, e.g. cart-7 or shoe-42"`
}

// RevalidateOutput acknowledges the invalidation.
type RevalidateOutput struct {
	Body struct {
		Revalidated bool   `json:"revalidated"`
		Tag         string `json:"tag"`
	}
}

func (s *Server) handleRevalidate(_ context.Context, input *RevalidateInput) (*RevalidateOutput, error) {
	s.logger.Debug("revalidate", "tag", input.Tag)
	out := &RevalidateOutput{}
	out.Body.Revalidated = true
	out.Body.Tag = input.Tag
	return out, nil
}
