package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/angelmondragon/tableside/api/responses"
	"github.com/angelmondragon/tableside/api/validators"
	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/pagination"
)

// OrderBoard is the display surface the order routes read from.
type OrderBoard interface {
	json.Marshaler
	Fetch(ctx context.Context, params pagination.Params) (*orders.OrderPage, error)
	Refresh(ctx context.Context) (*orders.OrderPage, error)
	Latest() (*orders.OrderPage, time.Time)
}

type refreshRequest struct {
	Page     int `json:"page" validate:"omitempty,gte=1"`
	PageSize int `json:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// BoardOrders returns the board's current page. A page query switches the
// board to that page; a board that never loaded fetches on first read.
func BoardOrders(board OrderBoard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		page, err := validators.ParseQueryInt(r, "page", 0, 1, 100000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pageSize, err := validators.ParseQueryInt(r, "page_size", 0, 1, pagination.MaxPageSize)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		current, _ := board.Latest()
		switch {
		case page > 0 || pageSize > 0:
			_, err = board.Fetch(ctx, pagination.Params{Page: page, PageSize: pageSize})
		case current == nil:
			_, err = board.Refresh(ctx)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, board)
	}
}

// RefreshOrders refetches the board, optionally moving it to another page.
func RefreshOrders(board OrderBoard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var err error
		if body.Page > 0 || body.PageSize > 0 {
			_, err = board.Fetch(ctx, pagination.Params{Page: body.Page, PageSize: body.PageSize})
		} else {
			_, err = board.Refresh(ctx)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, board)
	}
}
