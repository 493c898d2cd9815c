package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockProfileRepository puerto para los campos de stock de los productos.
type StockProfileRepository interface {
	// Get devuelve domain.ErrNotFound si el producto no tiene perfil en el tenant.
	Get(ctx context.Context, tenantID, productID string) (*entity.ProductStockProfile, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.ProductStockProfile, error)
	// Save inserta o actualiza los campos de catálogo (nombre, política, mínimo).
	// No toca el saldo cacheado ni su versión.
	Save(ctx context.Context, profile *entity.ProductStockProfile) error
	// UpdateBalance escribe CurrentBalance y MovementCount solo si la versión guardada
	// sigue siendo expectedVersion; en ese caso profile.BalanceVersion queda en expectedVersion+1.
	// Si otra escritura ganó devuelve domain.ErrConcurrencyConflict.
	UpdateBalance(ctx context.Context, profile *entity.ProductStockProfile, expectedVersion int64) error
}
