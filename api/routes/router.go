package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tableside/api/controllers"
	"github.com/angelmondragon/tableside/api/middleware"
	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/logger"
)

// NewRouter wires the display daemon's HTTP surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	board controllers.OrderBoard,
	conn controllers.ConnectionState,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.Display.AllowedOrigins),
	)

	r.Get("/healthz", controllers.Healthz(cfg, conn))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logging(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.BoardOrders(board, logg))
			r.Post("/refresh", controllers.RefreshOrders(board, logg))
		})

		r.Get("/tables/{number}/qr.png", controllers.TableQRCode(cfg.Display.JoinBaseURL, cfg.Display.QRCodeSizePx, logg))
	})

	return r
}
