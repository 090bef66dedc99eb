package controllers

import (
	"net/http"

	"github.com/angelmondragon/tableside/api/responses"
	"github.com/angelmondragon/tableside/pkg/config"
)

// ConnectionState reports whether the realtime socket is open.
type ConnectionState interface {
	IsConnected() bool
}

func Healthz(cfg *config.Config, conn ConnectionState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tableside-Env", cfg.App.Env)
		realtime := "disconnected"
		if conn != nil && conn.IsConnected() {
			realtime = "connected"
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok", "realtime": realtime})
	}
}
