package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
)

// RoleAdmin rol que puede reconciliar el tenant y cambiar su configuración.
const RoleAdmin = "admin"

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    *stock.LedgerService
	Metrics   nethttp.Handler // nil = sin /metrics
	JWTSecret string
	JWTIssuer string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	st := protected.Group("/stock")
	h := NewStockHandler(deps.Ledger)
	st.Post("/movements", h.RecordMovement)
	st.Get("/balance", h.GetBalance)
	st.Get("/history", h.GetHistory)
	st.Get("/history.pdf", h.GetStockCardPDF)
	st.Get("/availability", h.GetAvailability)
	st.Get("/low-stock", h.ListLowStock)
	st.Post("/order-movements", h.RecordOrderMovements)
	st.Get("/config", h.GetConfig)
	st.Put("/config", RequireRole(RoleAdmin), h.SaveConfig)
	st.Post("/reconcile", RequireRole(RoleAdmin), h.ReconcileTenant)

	products := st.Group("/products")
	products.Get("/:id/low-stock", h.IsLowStock)
	products.Put("/:id/profile", h.UpsertProfile)
	products.Post("/:id/reconcile", h.ReconcileProduct)
}
