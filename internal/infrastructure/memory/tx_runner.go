package memory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner transacciones optimistas sobre el Store: lecturas contra lo confirmado más lo propio,
// escrituras en buffer, verificación de versiones y aplicación atómica en Commit.
type TxRunner struct {
	s *Store
}

// NewTxRunner construye el runner.
func NewTxRunner(s *Store) *TxRunner {
	return &TxRunner{s: s}
}

// balanceWrite primera versión esperada y último valor escrito para una clave.
type balanceWrite struct {
	profile *entity.ProductStockProfile
	base    int64
	last    int64
}

type tx struct {
	s         *Store
	movements []*entity.StockMovement
	balances  map[key]*balanceWrite
}

// Run ejecuta fn y confirma sus escrituras si no devolvió error.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	profileRepo repository.StockProfileRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: r.s, balances: make(map[key]*balanceWrite)}
	if err := fn(&txMovementRepo{t: t}, &txProfileRepo{t: t}); err != nil {
		return err
	}
	return t.commit()
}

func (t *tx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for k, w := range t.balances {
		if err := t.s.checkVersion(k, w.base); err != nil {
			return err
		}
	}
	for _, m := range t.movements {
		if _, dup := t.s.movIDs[m.ID]; dup {
			return domain.ErrInvalidInput
		}
	}
	for _, m := range t.movements {
		_ = t.s.insertMovement(m)
	}
	for _, w := range t.balances {
		t.s.applyBalance(w.profile, w.last)
	}
	return nil
}

// pendingProfile último valor escrito en esta tx para la clave, si lo hay.
func (t *tx) pendingProfile(k key) *entity.ProductStockProfile {
	if w, ok := t.balances[k]; ok {
		return w.profile
	}
	return nil
}

type txMovementRepo struct{ t *tx }

func (r *txMovementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	c := *m
	r.t.movements = append(r.t.movements, &c)
	return nil
}

func (r *txMovementRepo) ListByProduct(_ context.Context, tenantID, productID string) ([]*entity.StockMovement, error) {
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	return r.t.s.listMovements(key{tenantID, productID}, r.t.movements), nil
}

type txProfileRepo struct{ t *tx }

func (r *txProfileRepo) Get(ctx context.Context, tenantID, productID string) (*entity.ProductStockProfile, error) {
	base, err := NewProfileRepository(r.t.s).Get(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if p := r.t.pendingProfile(key{tenantID, productID}); p != nil {
		c := p.Clone()
		c.Name, c.UnitPolicy = base.Name, base.UnitPolicy
		c.MinimumThreshold, c.ThresholdEnabled = base.MinimumThreshold, base.ThresholdEnabled
		return c, nil
	}
	return base, nil
}

func (r *txProfileRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.ProductStockProfile, error) {
	return NewProfileRepository(r.t.s).ListByTenant(ctx, tenantID)
}

func (r *txProfileRepo) Save(ctx context.Context, p *entity.ProductStockProfile) error {
	return NewProfileRepository(r.t.s).Save(ctx, p)
}

// UpdateBalance falla de inmediato si la versión ya cambió y se vuelve a verificar en Commit.
func (r *txProfileRepo) UpdateBalance(_ context.Context, p *entity.ProductStockProfile, expectedVersion int64) error {
	k := key{p.TenantID, p.ProductID}
	w, ok := r.t.balances[k]
	if !ok {
		r.t.s.mu.RLock()
		err := r.t.s.checkVersion(k, expectedVersion)
		r.t.s.mu.RUnlock()
		if err != nil {
			return err
		}
		w = &balanceWrite{base: expectedVersion}
		r.t.balances[k] = w
	} else if w.profile.BalanceVersion != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	w.profile = p.Clone()
	w.profile.BalanceVersion = expectedVersion + 1
	w.last = expectedVersion
	p.BalanceVersion = expectedVersion + 1
	return nil
}
