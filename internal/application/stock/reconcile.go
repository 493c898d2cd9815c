package stock

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// ReconcileResult comparación entre el saldo cacheado y el reconstruido.
type ReconcileResult struct {
	ProductID string
	Previous  *decimal.Decimal // nil si no había saldo cacheado
	Replayed  decimal.Decimal
	Movements int
	Drifted   bool
}

// ReconcileProduct reconstruye el saldo desde todo el historial y corrige el saldo cacheado si difiere.
// Toma el mismo lock que RecordMovement.
func (s *LedgerService) ReconcileProduct(ctx context.Context, tenantID, productID string) (*ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "stock.ReconcileProduct", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("product_id", productID),
	))
	defer span.End()

	unlock := s.locks.Lock(productKey(tenantID, productID))
	defer unlock()

	var (
		res     *ReconcileResult
		version int64
	)
	err := s.withRetry(ctx, tenantID, productID, func() error {
		return s.tx.Run(ctx, func(movRepo repository.MovementRepository, profileRepo repository.StockProfileRepository) error {
			profile, err := profileRepo.Get(ctx, tenantID, productID)
			if err != nil {
				return err
			}
			ms, err := movRepo.ListByProduct(ctx, tenantID, productID)
			if err != nil {
				return err
			}
			s.metrics.ReplayObserved(len(ms))
			r := inventory.ReplayBalance(profile.UnitPolicy, ms)

			res = &ReconcileResult{
				ProductID: productID,
				Previous:  profile.CurrentBalance,
				Replayed:  r.Balance,
				Movements: len(ms),
			}
			res.Drifted = profile.CurrentBalance == nil ||
				!profile.CurrentBalance.Equal(r.Balance) ||
				profile.MovementCount != int64(len(ms))
			version = profile.BalanceVersion
			if !res.Drifted {
				return nil
			}

			expected := profile.BalanceVersion
			balance := r.Balance
			profile.CurrentBalance = &balance
			profile.MovementCount = int64(len(ms))
			if err := profileRepo.UpdateBalance(ctx, profile, expected); err != nil {
				return err
			}
			version = profile.BalanceVersion
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.cache.Set(ctx, tenantID, productID, res.Replayed, version); err != nil {
		_ = s.cache.Invalidate(ctx, tenantID, productID)
	}
	if res.Drifted {
		prev := "<ausente>"
		if res.Previous != nil {
			prev = res.Previous.String()
		}
		s.log.Warn().
			Str("tenant_id", tenantID).
			Str("product_id", productID).
			Str("previous", prev).
			Str("replayed", res.Replayed.String()).
			Msg("saldo corregido por reconciliación")
	}
	span.SetAttributes(attribute.Bool("drifted", res.Drifted))
	return res, nil
}

// TenantReconcileSummary resultado de verificar todos los productos de un tenant.
type TenantReconcileSummary struct {
	Checked        int
	Corrected      int
	Failed         int
	FailedProducts []string
}

// ReconcileTenant verifica y corrige todos los perfiles del tenant con paralelismo acotado.
// Un producto que falla no detiene a los demás.
func (s *LedgerService) ReconcileTenant(ctx context.Context, tenantID string) (*TenantReconcileSummary, error) {
	profiles, err := s.profiles.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		sum = &TenantReconcileSummary{FailedProducts: []string{}}
		g   errgroup.Group
	)
	g.SetLimit(s.cfg.ReconcileParallelism)
	for _, p := range profiles {
		productID := p.ProductID
		g.Go(func() error {
			res, err := s.ReconcileProduct(ctx, tenantID, productID)
			mu.Lock()
			defer mu.Unlock()
			sum.Checked++
			if err != nil {
				sum.Failed++
				sum.FailedProducts = append(sum.FailedProducts, productID)
				s.log.Error().Err(err).Str("tenant_id", tenantID).Str("product_id", productID).
					Msg("reconciliación fallida")
				return nil
			}
			if res.Drifted {
				sum.Corrected++
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(sum.FailedProducts)

	s.log.Info().
		Str("tenant_id", tenantID).
		Int("checked", sum.Checked).
		Int("corrected", sum.Corrected).
		Int("failed", sum.Failed).
		Msg("reconciliación de tenant finalizada")
	return sum, nil
}
