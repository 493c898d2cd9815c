package postgres

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockControlConfigRepository = (*StockConfigRepo)(nil)

// StockConfigRepo configuración de control de stock por tenant.
type StockConfigRepo struct {
	q Querier
}

// NewStockConfigRepository construye el adaptador.
func NewStockConfigRepository(q Querier) *StockConfigRepo {
	return &StockConfigRepo{q: q}
}

// GetByTenant domain.ErrNotFound si el tenant no tiene fila.
func (r *StockConfigRepo) GetByTenant(ctx context.Context, tenantID string) (*entity.StockControlConfig, error) {
	query := `SELECT tenant_id, strict_mode, control_mode, updated_at FROM stock_control_configs WHERE tenant_id = $1`
	var (
		c    entity.StockControlConfig
		mode string
	)
	if err := r.q.QueryRow(ctx, query, tenantID).Scan(&c.TenantID, &c.StrictMode, &mode, &c.UpdatedAt); err != nil {
		return nil, storeErr("get stock control config", err)
	}
	c.ControlMode = entity.ControlMode(mode)
	return &c, nil
}

// Save upsert por tenant.
func (r *StockConfigRepo) Save(ctx context.Context, c *entity.StockControlConfig) error {
	query := `
		INSERT INTO stock_control_configs (tenant_id, strict_mode, control_mode, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE SET
			strict_mode = EXCLUDED.strict_mode,
			control_mode = EXCLUDED.control_mode,
			updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, c.TenantID, c.StrictMode, string(c.ControlMode), c.UpdatedAt)
	return storeErr("save stock control config", err)
}
