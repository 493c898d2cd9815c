package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementRepository puerto de persistencia del ledger (solo agregar, nunca modificar ni borrar).
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	// ListByProduct devuelve todos los movimientos del producto en orden ascendente (OccurredAt, ID).
	// Es finito y se puede volver a llamar para empezar de nuevo.
	ListByProduct(ctx context.Context, tenantID, productID string) ([]*entity.StockMovement, error)
}
