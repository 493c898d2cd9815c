// Package memory implementa los puertos del ledger en memoria (modo LEDGER_STORE=memory y tests).
// Las transacciones acumulan escrituras y las aplican en Commit verificando las versiones de saldo,
// igual que la actualización condicional en PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

type key struct{ tenant, product string }

// Store estado compartido de todos los repositorios en memoria.
type Store struct {
	mu         sync.RWMutex
	movements  map[key][]*entity.StockMovement
	movIDs     map[string]struct{}
	profiles   map[key]*entity.ProductStockProfile
	configs    map[string]*entity.StockControlConfig
	orderLines map[key][]entity.OrderLine
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		movements:  make(map[key][]*entity.StockMovement),
		movIDs:     make(map[string]struct{}),
		profiles:   make(map[key]*entity.ProductStockProfile),
		configs:    make(map[string]*entity.StockControlConfig),
		orderLines: make(map[key][]entity.OrderLine),
	}
}

var (
	_ repository.MovementRepository           = (*MovementRepo)(nil)
	_ repository.StockProfileRepository       = (*ProfileRepo)(nil)
	_ repository.StockControlConfigRepository = (*ConfigRepo)(nil)
	_ repository.OrderLineRepository          = (*OrderLineRepo)(nil)
	_ stock.TxRunner                          = (*TxRunner)(nil)
)

// ── Movimientos ───────────────────────────────────────────────────────────────

// MovementRepo movimientos fuera de transacción (cada Create se confirma al instante).
type MovementRepo struct{ s *Store }

// NewMovementRepository construye el repositorio.
func NewMovementRepository(s *Store) *MovementRepo { return &MovementRepo{s: s} }

func (r *MovementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertMovement(m)
}

func (r *MovementRepo) ListByProduct(_ context.Context, tenantID, productID string) ([]*entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.listMovements(key{tenantID, productID}, nil), nil
}

func (s *Store) insertMovement(m *entity.StockMovement) error {
	if _, dup := s.movIDs[m.ID]; dup {
		return domain.ErrInvalidInput
	}
	c := *m
	k := key{m.TenantID, m.ProductID}
	s.movements[k] = append(s.movements[k], &c)
	s.movIDs[m.ID] = struct{}{}
	return nil
}

// listMovements copia de los movimientos confirmados más los pendientes, ordenados.
func (s *Store) listMovements(k key, pending []*entity.StockMovement) []*entity.StockMovement {
	out := make([]*entity.StockMovement, 0, len(s.movements[k])+len(pending))
	for _, m := range s.movements[k] {
		c := *m
		out = append(out, &c)
	}
	for _, m := range pending {
		if m.TenantID == k.tenant && m.ProductID == k.product {
			c := *m
			out = append(out, &c)
		}
	}
	inventory.SortMovements(out)
	return out
}

// ── Perfiles ──────────────────────────────────────────────────────────────────

// ProfileRepo perfiles de stock fuera de transacción.
type ProfileRepo struct{ s *Store }

// NewProfileRepository construye el repositorio.
func NewProfileRepository(s *Store) *ProfileRepo { return &ProfileRepo{s: s} }

func (r *ProfileRepo) Get(_ context.Context, tenantID, productID string) (*entity.ProductStockProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[key{tenantID, productID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProfileRepo) ListByTenant(_ context.Context, tenantID string) ([]*entity.ProductStockProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.ProductStockProfile, 0)
	for k, p := range r.s.profiles {
		if k.tenant == tenantID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *ProfileRepo) Save(_ context.Context, p *entity.ProductStockProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key{p.TenantID, p.ProductID}
	cur, ok := r.s.profiles[k]
	if !ok {
		zero := decimal.Zero
		cur = &entity.ProductStockProfile{TenantID: p.TenantID, ProductID: p.ProductID, CurrentBalance: &zero}
		r.s.profiles[k] = cur
	}
	cur.Name = p.Name
	cur.UnitPolicy = p.UnitPolicy
	cur.MinimumThreshold = p.MinimumThreshold
	cur.ThresholdEnabled = p.ThresholdEnabled
	cur.UpdatedAt = p.UpdatedAt
	return nil
}

func (r *ProfileRepo) UpdateBalance(_ context.Context, p *entity.ProductStockProfile, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkVersion(key{p.TenantID, p.ProductID}, expectedVersion); err != nil {
		return err
	}
	r.s.applyBalance(p, expectedVersion)
	return nil
}

func (s *Store) checkVersion(k key, expected int64) error {
	cur, ok := s.profiles[k]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.BalanceVersion != expected {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (s *Store) applyBalance(p *entity.ProductStockProfile, expected int64) {
	cur := s.profiles[key{p.TenantID, p.ProductID}]
	if p.CurrentBalance != nil {
		b := *p.CurrentBalance
		cur.CurrentBalance = &b
	} else {
		cur.CurrentBalance = nil
	}
	cur.MovementCount = p.MovementCount
	cur.BalanceVersion = expected + 1
	p.BalanceVersion = expected + 1
}

// SetCachedBalance sobrescribe el saldo cacheado sin pasar por el ledger (nil = invalidado).
// Sirve para simular datos heredados o corruptos antes de reconciliar.
func (s *Store) SetCachedBalance(tenantID, productID string, balance *decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[key{tenantID, productID}]; ok {
		if balance != nil {
			b := *balance
			p.CurrentBalance = &b
		} else {
			p.CurrentBalance = nil
		}
	}
}

// ── Configuración ─────────────────────────────────────────────────────────────

// ConfigRepo configuración de control de stock por tenant.
type ConfigRepo struct{ s *Store }

// NewConfigRepository construye el repositorio.
func NewConfigRepository(s *Store) *ConfigRepo { return &ConfigRepo{s: s} }

func (r *ConfigRepo) GetByTenant(_ context.Context, tenantID string) (*entity.StockControlConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.configs[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *ConfigRepo) Save(_ context.Context, c *entity.StockControlConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.configs[c.TenantID] = &cp
	return nil
}

// ── Pedidos ───────────────────────────────────────────────────────────────────

// OrderLineRepo líneas de pedido cargadas con AddOrderLine.
type OrderLineRepo struct{ s *Store }

// NewOrderLineRepository construye el repositorio.
func NewOrderLineRepository(s *Store) *OrderLineRepo { return &OrderLineRepo{s: s} }

func (r *OrderLineRepo) ListByProduct(_ context.Context, tenantID, productID string) ([]entity.OrderLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	lines := r.s.orderLines[key{tenantID, productID}]
	out := make([]entity.OrderLine, len(lines))
	copy(out, lines)
	return out, nil
}

// AddOrderLine registra una línea de pedido del tenant.
func (s *Store) AddOrderLine(tenantID string, line entity.OrderLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tenantID, line.ProductID}
	s.orderLines[k] = append(s.orderLines[k], line)
}

// SetOrderStatus cambia el estado de todas las líneas del pedido.
func (s *Store) SetOrderStatus(tenantID, orderID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, lines := range s.orderLines {
		if k.tenant != tenantID {
			continue
		}
		for i := range lines {
			if lines[i].OrderID == orderID {
				lines[i].OrderStatus = status
			}
		}
	}
}
