package stock

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit. Un Commit fallido se reporta como
// domain.ErrStoreUnavailable.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		profileRepo repository.StockProfileRepository,
	) error) error
}

// BalanceCache caché de lectura de saldos, opcional. Set solo reemplaza valores con versión menor.
type BalanceCache interface {
	Get(ctx context.Context, tenantID, productID string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, tenantID, productID string, balance decimal.Decimal, version int64) error
	Invalidate(ctx context.Context, tenantID, productID string) error
}

// EventPublisher publica eventos del ledger después del Commit (best effort).
type EventPublisher interface {
	PublishMovementRecorded(ctx context.Context, ev MovementRecordedEvent) error
	PublishLowStock(ctx context.Context, ev LowStockEvent) error
}

// Metrics instrumentación del ledger.
type Metrics interface {
	MovementRecorded(kind string)
	MovementRejected(reason string)
	ConflictRetried()
	ReplayObserved(movements int)
}

// CommitmentSource cantidad comprometida por pedidos abiertos.
type CommitmentSource interface {
	CommittedQuantity(ctx context.Context, tenantID, productID string) (decimal.Decimal, error)
}

// StockCardRenderer genera el PDF del kardex de un producto.
type StockCardRenderer interface {
	RenderStockCard(card *StockCard) ([]byte, error)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
func (nopCache) Set(context.Context, string, string, decimal.Decimal, int64) error { return nil }
func (nopCache) Invalidate(context.Context, string, string) error                 { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishMovementRecorded(context.Context, MovementRecordedEvent) error { return nil }
func (nopPublisher) PublishLowStock(context.Context, LowStockEvent) error               { return nil }

type nopMetrics struct{}

func (nopMetrics) MovementRecorded(string) {}
func (nopMetrics) MovementRejected(string) {}
func (nopMetrics) ConflictRetried()        {}
func (nopMetrics) ReplayObserved(int)      {}
