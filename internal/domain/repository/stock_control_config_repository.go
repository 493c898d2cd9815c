package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockControlConfigRepository configuración de control de stock por tenant.
type StockControlConfigRepository interface {
	// GetByTenant devuelve domain.ErrNotFound si el tenant nunca guardó configuración.
	GetByTenant(ctx context.Context, tenantID string) (*entity.StockControlConfig, error)
	Save(ctx context.Context, cfg *entity.StockControlConfig) error
}
