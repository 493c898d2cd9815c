package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

var _ repository.StockProfileRepository = (*StockProfileRepo)(nil)

// StockProfileRepo campos de stock por producto (stock_profiles).
type StockProfileRepo struct {
	q Querier
}

// NewStockProfileRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockProfileRepository(q Querier) *StockProfileRepo {
	return &StockProfileRepo{q: q}
}

const profileColumns = `tenant_id, product_id, name, unit_policy, minimum_threshold, threshold_enabled,
		current_balance, balance_version, movement_count, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*entity.ProductStockProfile, error) {
	var (
		p       entity.ProductStockProfile
		policy  string
		balance *decimal.Decimal
	)
	if err := row.Scan(&p.TenantID, &p.ProductID, &p.Name, &policy, &p.MinimumThreshold,
		&p.ThresholdEnabled, &balance, &p.BalanceVersion, &p.MovementCount, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.UnitPolicy = unit.Policy(policy)
	p.CurrentBalance = balance
	return &p, nil
}

// Get perfil de un producto; domain.ErrNotFound si no existe.
func (r *StockProfileRepo) Get(ctx context.Context, tenantID, productID string) (*entity.ProductStockProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM stock_profiles WHERE tenant_id = $1 AND product_id = $2`
	p, err := scanProfile(r.q.QueryRow(ctx, query, tenantID, productID))
	if err != nil {
		return nil, storeErr("get stock profile", err)
	}
	return p, nil
}

// ListByTenant perfiles del tenant ordenados por producto.
func (r *StockProfileRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.ProductStockProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM stock_profiles WHERE tenant_id = $1 ORDER BY product_id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, storeErr("list stock profiles", err)
	}
	defer rows.Close()

	out := make([]*entity.ProductStockProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, storeErr("scan stock profile", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list stock profiles", err)
	}
	return out, nil
}

// Save inserta el perfil con saldo 0 o actualiza solo los campos de catálogo.
func (r *StockProfileRepo) Save(ctx context.Context, p *entity.ProductStockProfile) error {
	query := `
		INSERT INTO stock_profiles (tenant_id, product_id, name, unit_policy, minimum_threshold, threshold_enabled,
		                            current_balance, balance_version, movement_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7)
		ON CONFLICT (tenant_id, product_id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_policy = EXCLUDED.unit_policy,
			minimum_threshold = EXCLUDED.minimum_threshold,
			threshold_enabled = EXCLUDED.threshold_enabled,
			updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, p.TenantID, p.ProductID, p.Name, string(p.UnitPolicy),
		p.MinimumThreshold, p.ThresholdEnabled, p.UpdatedAt)
	return storeErr("save stock profile", err)
}

// UpdateBalance actualización condicional: solo si balance_version sigue en expectedVersion.
// Con READ COMMITTED una escritura concurrente bloquea la fila hasta su Commit y luego el
// WHERE se reevalúa contra la versión nueva, así que el perdedor ve 0 filas.
func (r *StockProfileRepo) UpdateBalance(ctx context.Context, p *entity.ProductStockProfile, expectedVersion int64) error {
	query := `
		UPDATE stock_profiles
		SET current_balance = $3, movement_count = $4, balance_version = balance_version + 1, updated_at = now()
		WHERE tenant_id = $1 AND product_id = $2 AND balance_version = $5`
	tag, err := r.q.Exec(ctx, query, p.TenantID, p.ProductID, p.CurrentBalance, p.MovementCount, expectedVersion)
	if err != nil {
		return storeErr("update stock balance", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	p.BalanceVersion = expectedVersion + 1
	return nil
}
