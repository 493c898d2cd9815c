package postgres

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación de MovementRepository sobre PostgreSQL (usable con pool o tx).
// La tabla no admite UPDATE ni DELETE (trigger).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create inserta el movimiento.
func (r *MovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, tenant_id, product_id, kind, quantity, unit_policy, occurred_at, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TenantID, m.ProductID, string(m.Kind), m.Quantity, string(m.UnitPolicy),
		m.OccurredAt, m.Note, m.Actor, m.CreatedAt,
	)
	return storeErr("create stock movement", err)
}

// ListByProduct lista el historial completo en orden (occurred_at, id).
func (r *MovementRepo) ListByProduct(ctx context.Context, tenantID, productID string) ([]*entity.StockMovement, error) {
	query := `
		SELECT id, tenant_id, product_id, kind, quantity, COALESCE(unit_policy, ''), occurred_at,
		       COALESCE(note, ''), actor, created_at
		FROM stock_movements
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY occurred_at, id`
	rows, err := r.q.Query(ctx, query, tenantID, productID)
	if err != nil {
		return nil, storeErr("list stock movements", err)
	}
	defer rows.Close()

	out := make([]*entity.StockMovement, 0)
	for rows.Next() {
		var (
			m            entity.StockMovement
			kind, policy string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ProductID, &kind, &m.Quantity, &policy,
			&m.OccurredAt, &m.Note, &m.Actor, &m.CreatedAt); err != nil {
			return nil, storeErr("scan stock movement", err)
		}
		m.Kind = entity.MovementKind(kind)
		m.UnitPolicy = unit.Policy(policy)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list stock movements", err)
	}
	return out, nil
}
