package http

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

// StockHandler endpoints del ledger de stock (protegidos).
type StockHandler struct {
	ledger   *stock.LedgerService
	validate *validator.Validate
}

// NewStockHandler construye el handler.
func NewStockHandler(ledger *stock.LedgerService) *StockHandler {
	return &StockHandler{ledger: ledger, validate: newValidator()}
}

// tenant tenant del token. Si la petición trae tenant_id explícito debe coincidir.
func tenant(c *fiber.Ctx) (string, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return "", domain.ErrForbidden
	}
	if q := c.Query("tenant_id"); q != "" && q != tenantID {
		return "", fmt.Errorf("%w: tenant_id no coincide con el token", domain.ErrForbidden)
	}
	return tenantID, nil
}

func productQuery(c *fiber.Ctx) (string, error) {
	productID := strings.TrimSpace(c.Query("product_id"))
	if productID == "" {
		return "", fmt.Errorf("%w: product_id es obligatorio", domain.ErrInvalidInput)
	}
	return productID, nil
}

func (h *StockHandler) parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if err := h.validate.Struct(out); err != nil {
		return badRequest(c, "VALIDATION", validationMessage(err))
	}
	return nil
}

func movementResponse(res *stock.RecordMovementResult) dto.RecordMovementResponse {
	return dto.RecordMovementResponse{
		MovementID: res.MovementID,
		ProductID:  res.Movement.ProductID,
		Kind:       string(res.Movement.Kind),
		Quantity:   res.Movement.Quantity,
		NewBalance: res.NewBalance,
		OccurredAt: res.Movement.OccurredAt,
		LowStock:   res.LowStock,
	}
}

// RecordMovement godoc
// @Summary      Registrar movimiento de stock
// @Description  Agrega una entrada o salida al ledger. En modo estricto una salida mayor al saldo se rechaza sin registrar nada.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordMovementRequest  true  "product_id, kind (inflow|outflow), quantity, note"
// @Success      201   {object}  dto.RecordMovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/stock/movements [post]
func (h *StockHandler) RecordMovement(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.RecordMovementRequest
	if err := h.parse(c, &in); err != nil {
		return err
	}
	kind, ok := entity.ParseMovementKind(in.Kind)
	if !ok {
		return badRequest(c, "VALIDATION", "kind: debe ser inflow u outflow")
	}
	res, err := h.ledger.RecordMovement(c.UserContext(), stock.RecordMovementInput{
		TenantID:  tenantID,
		ProductID: in.ProductID,
		Kind:      kind,
		Quantity:  in.Quantity,
		Note:      in.Note,
		Actor:     GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(movementResponse(res))
}

// GetBalance godoc
// @Summary      Saldo actual de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  query  string  true  "ID del producto"
// @Success      200  {object}  dto.BalanceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/balance [get]
func (h *StockHandler) GetBalance(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	productID, err := productQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	balance, err := h.ledger.GetBalance(c.UserContext(), tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.BalanceResponse{ProductID: productID, Balance: balance})
}

// GetHistory godoc
// @Summary      Historial de movimientos con saldo histórico
// @Description  Del más reciente al más antiguo; historical_balance es el saldo al cierre de cada movimiento.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  query  string  true   "ID del producto"
// @Param        limit       query  int     false  "Tamaño de página (1-100)"
// @Param        offset      query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.HistoryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/history [get]
func (h *StockHandler) GetHistory(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	productID, err := productQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badRequest(c, "VALIDATION", "limit/offset inválidos")
	}
	if page.Limit != 0 {
		if err := h.validate.Struct(page); err != nil {
			return badRequest(c, "VALIDATION", validationMessage(err))
		}
	}
	entries, err := h.ledger.GetHistory(c.UserContext(), tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	from, to := page.Window(len(entries))
	items := make([]dto.HistoryEntryResponse, 0, to-from)
	for _, e := range entries[from:to] {
		items = append(items, dto.HistoryEntryResponse{
			MovementID:        e.Movement.ID,
			Kind:              string(e.Movement.Kind),
			Quantity:          e.Movement.Quantity,
			OccurredAt:        e.Movement.OccurredAt,
			Note:              e.Movement.Note,
			Actor:             e.Movement.Actor,
			HistoricalBalance: e.Balance,
		})
	}
	resp := dto.HistoryResponse{ProductID: productID, Items: items}
	if page.Limit != 0 {
		resp.Page = &dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: len(entries)}
	}
	return c.JSON(resp)
}

// GetStockCardPDF godoc
// @Summary      Kardex en PDF
// @Tags         stock
// @Security     Bearer
// @Produce      application/pdf
// @Param        product_id  query  string  true  "ID del producto"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/history.pdf [get]
func (h *StockHandler) GetStockCardPDF(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	productID, err := productQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	doc, err := h.ledger.RenderStockCard(c.UserContext(), tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="kardex-%s.pdf"`, productID))
	return c.Send(doc)
}

// GetAvailability godoc
// @Summary      Disponibilidad efectiva
// @Description  Saldo menos lo comprometido en pedidos no facturados. Puede ser negativo.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  query  string  true  "ID del producto"
// @Success      200  {object}  dto.AvailabilityResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/availability [get]
func (h *StockHandler) GetAvailability(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	productID, err := productQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	av, err := h.ledger.GetAvailability(c.UserContext(), tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.AvailabilityResponse{
		ProductID:            productID,
		Balance:              av.Balance,
		Committed:            av.Committed,
		EffectivelyAvailable: av.EffectivelyAvailable,
	})
}

// ListLowStock godoc
// @Summary      Productos en o por debajo del stock mínimo
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.LowStockItemResponse
// @Router       /api/stock/low-stock [get]
func (h *StockHandler) ListLowStock(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.ledger.ListLowStock(c.UserContext(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.LowStockItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, dto.LowStockItemResponse{
			ProductID:  it.ProductID,
			Name:       it.Name,
			UnitPolicy: string(it.UnitPolicy),
			Balance:    it.Balance,
			Threshold:  it.Threshold,
			Deficit:    it.Deficit,
			Status:     string(it.Status),
		})
	}
	return c.JSON(fiber.Map{"total": len(out), "items": out})
}

// IsLowStock godoc
// @Summary      Indica si un producto está en o por debajo del mínimo
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del producto"
// @Success      200  {object}  dto.LowStockCheckResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/products/{id}/low-stock [get]
func (h *StockHandler) IsLowStock(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	productID := c.Params("id")
	low, err := h.ledger.IsLowStock(c.UserContext(), tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.LowStockCheckResponse{ProductID: productID, LowStock: low})
}

// ReconcileProduct godoc
// @Summary      Reconstruir y corregir el saldo de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del producto"
// @Success      200  {object}  dto.ReconcileResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/products/{id}/reconcile [post]
func (h *StockHandler) ReconcileProduct(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.ledger.ReconcileProduct(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ReconcileResponse{
		ProductID: res.ProductID,
		Previous:  res.Previous,
		Replayed:  res.Replayed,
		Movements: res.Movements,
		Drifted:   res.Drifted,
	})
}

// ReconcileTenant godoc
// @Summary      Verificar y corregir los saldos de todos los productos
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.TenantReconcileResponse
// @Router       /api/stock/reconcile [post]
func (h *StockHandler) ReconcileTenant(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	sum, err := h.ledger.ReconcileTenant(c.UserContext(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.TenantReconcileResponse{
		Checked:        sum.Checked,
		Corrected:      sum.Corrected,
		Failed:         sum.Failed,
		FailedProducts: sum.FailedProducts,
	})
}

// RecordOrderMovements godoc
// @Summary      Movimientos por líneas de pedido
// @Description  Un movimiento por línea. En modo estricto el primer fallo detiene el resto (409 con lo ya aplicado); si no, los fallos vuelven como advertencias.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.OrderMovementsRequest  true  "order_id, kind, origin (order|invoicing), lines"
// @Success      201   {object}  dto.OrderMovementsResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/order-movements [post]
func (h *StockHandler) RecordOrderMovements(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.OrderMovementsRequest
	if err := h.parse(c, &in); err != nil {
		return err
	}
	kind, ok := entity.ParseMovementKind(in.Kind)
	if !ok {
		return badRequest(c, "VALIDATION", "kind: debe ser inflow u outflow")
	}
	lines := make([]stock.OrderMovementLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, stock.OrderMovementLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	res, err := h.ledger.RecordOrderLines(c.UserContext(), stock.OrderMovementsInput{
		TenantID: tenantID,
		OrderID:  in.OrderID,
		Actor:    GetUserID(c),
		Kind:     kind,
		Origin:   in.Origin,
		Lines:    lines,
	})
	if err != nil && res == nil {
		return writeError(c, err)
	}

	out := dto.OrderMovementsResponse{
		Applied:  make([]dto.RecordMovementResponse, 0, len(res.Applied)),
		Warnings: make([]dto.LineWarningResponse, 0, len(res.Warnings)),
	}
	for _, a := range res.Applied {
		out.Applied = append(out.Applied, movementResponse(a))
	}
	for _, w := range res.Warnings {
		_, code := errorCode(w.Err)
		out.Warnings = append(out.Warnings, dto.LineWarningResponse{
			Line: w.Line, ProductID: w.ProductID, Code: code, Message: w.Err.Error(),
		})
	}
	if err != nil {
		status, code := errorCode(err)
		return c.Status(status).JSON(fiber.Map{
			"code":    code,
			"message": err.Error(),
			"applied": out.Applied,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func configResponse(cfg *entity.StockControlConfig) dto.StockConfigResponse {
	out := dto.StockConfigResponse{StrictMode: cfg.StrictMode, ControlMode: string(cfg.ControlMode)}
	if !cfg.UpdatedAt.IsZero() {
		t := cfg.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// GetConfig godoc
// @Summary      Configuración de control de stock del tenant
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.StockConfigResponse
// @Router       /api/stock/config [get]
func (h *StockHandler) GetConfig(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	cfg, err := h.ledger.GetControlConfig(c.UserContext(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(configResponse(cfg))
}

// SaveConfig godoc
// @Summary      Actualizar configuración de control de stock
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StockConfigRequest  true  "strict_mode, control_mode"
// @Success      200  {object}  dto.StockConfigResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/stock/config [put]
func (h *StockHandler) SaveConfig(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.StockConfigRequest
	if err := h.parse(c, &in); err != nil {
		return err
	}
	cfg, err := h.ledger.SaveControlConfig(c.UserContext(), &entity.StockControlConfig{
		TenantID:    tenantID,
		StrictMode:  in.StrictMode,
		ControlMode: entity.ControlMode(in.ControlMode),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(configResponse(cfg))
}

// UpsertProfile godoc
// @Summary      Crear o actualizar los campos de stock de un producto
// @Description  Con initial_stock > 0 y sin movimientos previos registra una entrada "initial stock".
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID del producto"
// @Param        body  body  dto.StockProfileRequest  true  "name, unit_policy, minimum_threshold, threshold_enabled, initial_stock"
// @Success      200  {object}  dto.StockProfileResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/products/{id}/profile [put]
func (h *StockHandler) UpsertProfile(c *fiber.Ctx) error {
	tenantID, err := tenant(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.StockProfileRequest
	if err := h.parse(c, &in); err != nil {
		return err
	}
	initial := decimal.Zero
	if in.InitialStock != nil {
		initial = *in.InitialStock
	}
	p, err := h.ledger.UpsertProfile(c.UserContext(), stock.UpsertProfileInput{
		TenantID:         tenantID,
		ProductID:        c.Params("id"),
		Name:             in.Name,
		UnitPolicy:       unit.Policy(in.UnitPolicy),
		MinimumThreshold: in.MinimumThreshold,
		ThresholdEnabled: in.ThresholdEnabled,
		InitialStock:     initial,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.StockProfileResponse{
		ProductID:        p.ProductID,
		Name:             p.Name,
		UnitPolicy:       string(p.UnitPolicy),
		MinimumThreshold: p.MinimumThreshold,
		ThresholdEnabled: p.ThresholdEnabled,
		CurrentBalance:   p.CurrentBalance,
		BalanceVersion:   p.BalanceVersion,
		MovementCount:    p.MovementCount,
		UpdatedAt:        p.UpdatedAt,
	})
}
