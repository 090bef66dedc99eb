package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tableside/api/responses"
	"github.com/angelmondragon/tableside/internal/tables"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
)

// TableQRCode renders the join link for /tables/{number}/qr.png?token= as a PNG.
func TableQRCode(joinBaseURL string, size int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		number, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "table number must be numeric").WithDetails(map[string]any{"field": "number"}))
			return
		}
		table := tables.Identity{Number: number, Token: r.URL.Query().Get("token")}
		png, err := table.QRCode(joinBaseURL, size)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Debug(logg.WithField(ctx, "table_number", number), "table qr rendered")
		}
		responses.WritePNG(w, png)
	}
}
