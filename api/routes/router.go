package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkruczek/spizarka-backend/api/controllers"
	"github.com/pkruczek/spizarka-backend/api/middleware"
	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/receipts"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	receiptService receipts.Service,
	inventoryService inventory.Service,
	healthChecks map[string]controllers.Pinger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthChecks))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/receipts", func(r chi.Router) {
		r.Post("/", controllers.UploadReceipt(receiptService, logg, cfg.Storage.MaxUploadMB))
		r.Get("/", controllers.ListReceipts(receiptService, logg))
		r.Get("/stats", controllers.ReceiptStats(receiptService, logg))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", controllers.GetReceipt(receiptService, logg))
			r.Get("/status", controllers.ReceiptStatus(receiptService, logg))
			r.Post("/confirm", controllers.ConfirmReceipt(receiptService, logg))
			r.Post("/retry", controllers.RetryReceipt(receiptService, logg))
			r.Delete("/", controllers.DeleteReceipt(receiptService, logg))
		})
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/", controllers.ListInventory(inventoryService, logg))
		r.Get("/low-stock", controllers.LowStockInventory(inventoryService, logg))
		r.Get("/summary", controllers.InventorySummary(inventoryService, logg))
		r.Route("/{productID}", func(r chi.Router) {
			r.Get("/history", controllers.InventoryHistory(inventoryService, logg))
			r.Post("/consume", controllers.ConsumeInventory(inventoryService, logg))
			r.Post("/adjust", controllers.AdjustInventory(inventoryService, logg))
		})
	})

	return r
}
