package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// MovementStore colección append-only de movimientos por (tenant, producto).
// Rechaza cantidades que no estén ya normalizadas según la política registrada en el movimiento.
type MovementStore struct {
	repo repository.MovementRepository
	now  func() time.Time
}

// NewMovementStore construye el store sobre un repositorio (pool o tx).
func NewMovementStore(repo repository.MovementRepository) *MovementStore {
	return &MovementStore{repo: repo, now: time.Now}
}

// Append valida y persiste el movimiento. Completa ID (UUID v7), Actor y CreatedAt si faltan.
func (s *MovementStore) Append(ctx context.Context, m *entity.StockMovement) (*entity.StockMovement, error) {
	if m == nil || m.TenantID == "" || m.ProductID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, m.Kind)
	}
	if !m.UnitPolicy.Valid() {
		return nil, fmt.Errorf("%w: política de unidad %q", domain.ErrInvalidInput, m.UnitPolicy)
	}
	if err := m.UnitPolicy.CheckExact(m.Quantity); err != nil {
		return nil, err
	}

	stored := *m
	if stored.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generar id de movimiento: %w", err)
		}
		stored.ID = id.String()
	}
	if strings.TrimSpace(stored.Actor) == "" {
		stored.Actor = entity.ActorSystem
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	if stored.OccurredAt.IsZero() {
		stored.OccurredAt = now
	}
	stored.CreatedAt = now

	if err := s.repo.Create(ctx, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListByProduct movimientos del producto en orden ascendente (OccurredAt, ID).
func (s *MovementStore) ListByProduct(ctx context.Context, tenantID, productID string) ([]*entity.StockMovement, error) {
	return s.repo.ListByProduct(ctx, tenantID, productID)
}
