package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes mounts the API surface. The idempotency middleware wraps the
// whole v1 group; it only engages on mutating requests that carry a key.
func SetupRoutes(app *fiber.App, th *TransferHandler, hh *HealthHandler, idempotency fiber.Handler) {
	app.Get("/health", hh.Check)

	api := app.Group("/api")
	v1 := api.Group("/v1", idempotency)

	transfers := v1.Group("/transfers")
	transfers.Post("/", th.CreateTransfer)
	transfers.Post("/bulk", th.CreateBulkTransfer)
	transfers.Post("/recurring", th.CreateRecurringTransfer)
	transfers.Get("/bulk/:id", th.GetBulkTransfer)
	transfers.Get("/:id", th.GetTransfer)
	transfers.Get("/:id/status", th.GetTransferStatus)
	transfers.Post("/:id/cancel", th.CancelTransfer)
}
