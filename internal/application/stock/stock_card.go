package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

// StockCard datos del kardex de un producto (historial del más reciente al más antiguo).
type StockCard struct {
	TenantID    string
	ProductID   string
	ProductName string
	UnitPolicy  unit.Policy
	Balance     decimal.Decimal
	Entries     []inventory.HistoricalEntry
	GeneratedAt time.Time
}

// GetStockCard arma el kardex a partir de un replay completo.
func (s *LedgerService) GetStockCard(ctx context.Context, tenantID, productID string) (*StockCard, error) {
	profile, err := s.profiles.Get(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	r, err := s.replay(ctx, profile)
	if err != nil {
		return nil, err
	}
	name := profile.Name
	if name == "" {
		name = productID
	}
	return &StockCard{
		TenantID:    tenantID,
		ProductID:   productID,
		ProductName: name,
		UnitPolicy:  profile.UnitPolicy,
		Balance:     r.Balance,
		Entries:     r.NewestFirst(),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// RenderStockCard genera el PDF del kardex.
func (s *LedgerService) RenderStockCard(ctx context.Context, tenantID, productID string) ([]byte, error) {
	if s.renderer == nil {
		return nil, errors.New("generador de kardex no configurado")
	}
	card, err := s.GetStockCard(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderStockCard(card)
}
