package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const tracerName = "github.com/jhoicas/stock-ledger/internal/application/stock"

// NoteInitialStock nota de la entrada creada al dar de alta un producto con stock.
const NoteInitialStock = "initial stock"

// LedgerConfig parámetros del servicio de ledger.
type LedgerConfig struct {
	MaxRetries           int           // reintentos ante conflicto de concurrencia (además del primer intento)
	RetryBackoff         time.Duration // espera base; crece lineal con el intento
	DefaultStrictMode    bool          // para tenants sin configuración guardada
	ReconcileParallelism int
}

// DefaultLedgerConfig valores por defecto.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxRetries:           3,
		RetryBackoff:         10 * time.Millisecond,
		ReconcileParallelism: 4,
	}
}

// LedgerDeps dependencias del servicio. Cache, Events, Metrics, Logger, Tracer y Now son opcionales.
type LedgerDeps struct {
	Tx          TxRunner
	Movements   repository.MovementRepository
	Profiles    repository.StockProfileRepository
	Configs     repository.StockControlConfigRepository
	Commitments CommitmentSource
	Cache       BalanceCache
	Events      EventPublisher
	Metrics     Metrics
	Renderer    StockCardRenderer
	Logger      *logger.Logger
	Tracer      trace.Tracer
	Now         func() time.Time
}

// LedgerService componente público del ledger de stock. RecordMovement es el único que escribe
// movimientos y lo hace serializado por (tenant, producto).
type LedgerService struct {
	tx          TxRunner
	movements   repository.MovementRepository
	profiles    repository.StockProfileRepository
	configs     repository.StockControlConfigRepository
	commitments CommitmentSource
	cache       BalanceCache
	events      EventPublisher
	metrics     Metrics
	renderer    StockCardRenderer
	log         *logger.Logger
	tracer      trace.Tracer
	now         func() time.Time
	cfg         LedgerConfig

	locks   *keyLock
	replays singleflight.Group
}

// NewLedgerService construye el servicio.
func NewLedgerService(deps LedgerDeps, cfg LedgerConfig) *LedgerService {
	s := &LedgerService{
		tx:          deps.Tx,
		movements:   deps.Movements,
		profiles:    deps.Profiles,
		configs:     deps.Configs,
		commitments: deps.Commitments,
		cache:       deps.Cache,
		events:      deps.Events,
		metrics:     deps.Metrics,
		renderer:    deps.Renderer,
		log:         deps.Logger,
		tracer:      deps.Tracer,
		now:         deps.Now,
		cfg:         cfg,
		locks:       newKeyLock(),
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cfg.MaxRetries < 0 {
		s.cfg.MaxRetries = 0
	}
	if s.cfg.ReconcileParallelism <= 0 {
		s.cfg.ReconcileParallelism = 1
	}
	return s
}

// RecordMovementInput entrada de RecordMovement.
type RecordMovementInput struct {
	TenantID  string
	ProductID string
	Kind      entity.MovementKind
	Quantity  decimal.Decimal
	Note      string
	Actor     string // user id; vacío = "system"

	onlyIfEmpty bool
}

// RecordMovementResult resultado de un movimiento confirmado.
type RecordMovementResult struct {
	MovementID string
	NewBalance decimal.Decimal
	Movement   *entity.StockMovement
	Version    int64
	LowStock   bool
	Threshold  decimal.Decimal
}

// RecordMovement valida la cantidad con la política del producto, verifica el saldo en modo
// estricto y agrega el movimiento. El chequeo, el insert y la actualización del saldo cacheado
// ocurren en la misma transacción; si otra escritura cambió la versión del saldo se reintenta.
func (s *LedgerService) RecordMovement(ctx context.Context, in RecordMovementInput) (*RecordMovementResult, error) {
	return s.record(ctx, in)
}

func (s *LedgerService) record(ctx context.Context, in RecordMovementInput) (*RecordMovementResult, error) {
	ctx, span := s.tracer.Start(ctx, "stock.RecordMovement", trace.WithAttributes(
		attribute.String("tenant_id", in.TenantID),
		attribute.String("product_id", in.ProductID),
		attribute.String("kind", string(in.Kind)),
		attribute.String("quantity", in.Quantity.String()),
	))
	defer span.End()

	res, err := s.recordMovement(ctx, in)
	if err != nil {
		reason := rejectionReason(err)
		s.metrics.MovementRejected(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		ev := s.log.Warn()
		if reason == "store_unavailable" || reason == "internal" {
			ev = s.log.Error()
		}
		ev.Err(err).
			Str("tenant_id", in.TenantID).
			Str("product_id", in.ProductID).
			Str("kind", string(in.Kind)).
			Str("quantity", in.Quantity.String()).
			Msg("movimiento rechazado")
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	s.metrics.MovementRecorded(string(in.Kind))
	span.SetAttributes(attribute.String("movement_id", res.MovementID))
	s.afterCommit(ctx, res)
	return res, nil
}

func (s *LedgerService) recordMovement(ctx context.Context, in RecordMovementInput) (*RecordMovementResult, error) {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.ProductID) == "" {
		return nil, fmt.Errorf("%w: tenant y producto son obligatorios", domain.ErrInvalidInput)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, in.Kind)
	}
	if !in.Quantity.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	strict, err := s.strictMode(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(productKey(in.TenantID, in.ProductID))
	defer unlock()

	var res *RecordMovementResult
	err = s.withRetry(ctx, in.TenantID, in.ProductID, func() error {
		var err error
		res, err = s.appendOnce(ctx, in, strict)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// appendOnce un intento completo dentro de una transacción: leer, reconstruir, verificar, agregar,
// actualizar el saldo condicionado a la versión leída.
func (s *LedgerService) appendOnce(ctx context.Context, in RecordMovementInput, strict bool) (*RecordMovementResult, error) {
	var res *RecordMovementResult
	err := s.tx.Run(ctx, func(movRepo repository.MovementRepository, profileRepo repository.StockProfileRepository) error {
		profile, err := profileRepo.Get(ctx, in.TenantID, in.ProductID)
		if err != nil {
			return err
		}
		policy := profile.UnitPolicy
		if err := policy.Validate(in.Quantity); err != nil {
			return err
		}
		qty := policy.Normalize(in.Quantity)

		store := &MovementStore{repo: movRepo, now: s.now}
		history, err := store.ListByProduct(ctx, in.TenantID, in.ProductID)
		if err != nil {
			return err
		}
		if in.onlyIfEmpty && len(history) > 0 {
			return nil
		}
		s.metrics.ReplayObserved(len(history))
		replay := inventory.ReplayBalance(policy, history)

		if strict && in.Kind == entity.MovementOutflow && qty.GreaterThan(replay.Balance) {
			return fmt.Errorf("%w: saldo %s, solicitado %s",
				domain.ErrInsufficientStock, policy.Format(replay.Balance), policy.Format(qty))
		}

		occurredAt := s.now().UTC().Truncate(time.Microsecond)
		if n := len(history); n > 0 {
			if last := history[n-1].OccurredAt; !occurredAt.After(last) {
				occurredAt = last.Add(time.Microsecond)
			}
		}
		stored, err := store.Append(ctx, &entity.StockMovement{
			TenantID:   in.TenantID,
			ProductID:  in.ProductID,
			Kind:       in.Kind,
			Quantity:   qty,
			UnitPolicy: policy,
			OccurredAt: occurredAt,
			Note:       strings.TrimSpace(in.Note),
			Actor:      strings.TrimSpace(in.Actor),
		})
		if err != nil {
			return err
		}
		replay = replay.Extend(policy, stored)

		expected := profile.BalanceVersion
		balance := replay.Balance
		profile.CurrentBalance = &balance
		profile.MovementCount = int64(len(replay.History))
		if err := profileRepo.UpdateBalance(ctx, profile, expected); err != nil {
			return err
		}
		res = &RecordMovementResult{
			MovementID: stored.ID,
			NewBalance: balance,
			Movement:   stored,
			Version:    profile.BalanceVersion,
			LowStock:   profile.IsLowStock(balance),
			Threshold:  profile.MinimumThreshold,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// withRetry reintenta fn mientras falle por conflicto de concurrencia, hasta MaxRetries veces.
func (s *LedgerService) withRetry(ctx context.Context, tenantID, productID string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= s.cfg.MaxRetries {
			return err
		}
		s.metrics.ConflictRetried()
		s.log.Warn().
			Str("tenant_id", tenantID).
			Str("product_id", productID).
			Int("attempt", attempt+1).
			Msg("conflicto de concurrencia, reintentando")
		if s.cfg.RetryBackoff <= 0 {
			continue
		}
		t := time.NewTimer(s.cfg.RetryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, ctx.Err())
		case <-t.C:
		}
	}
}

// afterCommit caché y eventos. Nada de esto deshace el movimiento: solo se registra en el log.
func (s *LedgerService) afterCommit(ctx context.Context, res *RecordMovementResult) {
	m := res.Movement
	if err := s.cache.Set(ctx, m.TenantID, m.ProductID, res.NewBalance, res.Version); err != nil {
		s.log.Warn().Err(err).Str("tenant_id", m.TenantID).Str("product_id", m.ProductID).
			Msg("no se pudo actualizar la caché de saldo")
		_ = s.cache.Invalidate(ctx, m.TenantID, m.ProductID)
	}

	if err := s.events.PublishMovementRecorded(ctx, MovementRecordedEvent{
		MovementID: m.ID,
		TenantID:   m.TenantID,
		ProductID:  m.ProductID,
		Kind:       string(m.Kind),
		Quantity:   m.Quantity,
		NewBalance: res.NewBalance,
		Actor:      m.Actor,
		OccurredAt: m.OccurredAt,
	}); err != nil {
		s.log.Warn().Err(err).Str("movement_id", m.ID).Msg("no se pudo publicar el evento de movimiento")
	}
	if res.LowStock {
		if err := s.events.PublishLowStock(ctx, LowStockEvent{
			TenantID:   m.TenantID,
			ProductID:  m.ProductID,
			Balance:    res.NewBalance,
			Threshold:  res.Threshold,
			DetectedAt: s.now().UTC(),
		}); err != nil {
			s.log.Warn().Err(err).Str("product_id", m.ProductID).Msg("no se pudo publicar el evento de stock bajo")
		}
	}

	s.log.Debug().
		Str("tenant_id", m.TenantID).
		Str("product_id", m.ProductID).
		Str("movement_id", m.ID).
		Str("kind", string(m.Kind)).
		Str("quantity", m.Quantity.String()).
		Str("balance", res.NewBalance.String()).
		Msg("movimiento registrado")
}

// GetBalance saldo actual: caché de lectura, luego el saldo cacheado del perfil y, si está
// invalidado, replay completo del historial.
func (s *LedgerService) GetBalance(ctx context.Context, tenantID, productID string) (decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "stock.GetBalance", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("product_id", productID),
	))
	defer span.End()

	if b, ok, err := s.cache.Get(ctx, tenantID, productID); err != nil {
		s.log.Debug().Err(err).Str("product_id", productID).Msg("caché de saldo no disponible")
	} else if ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return b, nil
	}

	profile, err := s.profiles.Get(ctx, tenantID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.balanceOf(ctx, profile)
}

func (s *LedgerService) balanceOf(ctx context.Context, profile *entity.ProductStockProfile) (decimal.Decimal, error) {
	if profile.CurrentBalance != nil {
		if err := s.cache.Set(ctx, profile.TenantID, profile.ProductID, *profile.CurrentBalance, profile.BalanceVersion); err != nil {
			s.log.Debug().Err(err).Str("product_id", profile.ProductID).Msg("no se pudo poblar la caché de saldo")
		}
		return *profile.CurrentBalance, nil
	}
	r, err := s.replay(ctx, profile)
	if err != nil {
		return decimal.Zero, err
	}
	return r.Balance, nil
}

// replay reconstruye desde los movimientos. Lecturas simultáneas del mismo producto comparten
// un único replay. El resultado es de solo lectura.
func (s *LedgerService) replay(ctx context.Context, profile *entity.ProductStockProfile) (inventory.Replay, error) {
	key := productKey(profile.TenantID, profile.ProductID)
	v, err, _ := s.replays.Do(key, func() (any, error) {
		ms, err := s.movements.ListByProduct(ctx, profile.TenantID, profile.ProductID)
		if err != nil {
			return nil, err
		}
		s.metrics.ReplayObserved(len(ms))
		return inventory.ReplayBalance(profile.UnitPolicy, ms), nil
	})
	if err != nil {
		return inventory.Replay{}, err
	}
	return v.(inventory.Replay), nil
}

// GetHistory movimientos con el saldo histórico de cada uno, del más reciente al más antiguo.
func (s *LedgerService) GetHistory(ctx context.Context, tenantID, productID string) ([]inventory.HistoricalEntry, error) {
	ctx, span := s.tracer.Start(ctx, "stock.GetHistory", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("product_id", productID),
	))
	defer span.End()

	profile, err := s.profiles.Get(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	r, err := s.replay(ctx, profile)
	if err != nil {
		return nil, err
	}
	return r.NewestFirst(), nil
}

// Availability saldo frente a lo comprometido por pedidos abiertos. EffectivelyAvailable puede ser negativo.
type Availability struct {
	Balance              decimal.Decimal
	Committed            decimal.Decimal
	EffectivelyAvailable decimal.Decimal
}

// GetAvailability consulta saldo y compromisos en paralelo y los combina.
func (s *LedgerService) GetAvailability(ctx context.Context, tenantID, productID string) (*Availability, error) {
	ctx, span := s.tracer.Start(ctx, "stock.GetAvailability", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("product_id", productID),
	))
	defer span.End()

	var balance, committed decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.GetBalance(gctx, tenantID, productID)
		balance = b
		return err
	})
	g.Go(func() error {
		c, err := s.commitments.CommittedQuantity(gctx, tenantID, productID)
		committed = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Availability{
		Balance:              balance,
		Committed:            committed,
		EffectivelyAvailable: balance.Sub(committed),
	}, nil
}

// IsLowStock verdadero si el mínimo está habilitado, es mayor que cero y el saldo no lo supera.
func (s *LedgerService) IsLowStock(ctx context.Context, tenantID, productID string) (bool, error) {
	profile, err := s.profiles.Get(ctx, tenantID, productID)
	if err != nil {
		return false, err
	}
	if !profile.ThresholdEnabled {
		return false, nil
	}
	balance, err := s.balanceOf(ctx, profile)
	if err != nil {
		return false, err
	}
	return profile.IsLowStock(balance), nil
}

// GetControlConfig configuración del tenant; si no existe devuelve los valores por defecto.
func (s *LedgerService) GetControlConfig(ctx context.Context, tenantID string) (*entity.StockControlConfig, error) {
	cfg, err := s.configs.GetByTenant(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return &entity.StockControlConfig{
			TenantID:    tenantID,
			StrictMode:  s.cfg.DefaultStrictMode,
			ControlMode: entity.ControlModeOrders,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveControlConfig guarda la configuración de control de stock del tenant.
func (s *LedgerService) SaveControlConfig(ctx context.Context, cfg *entity.StockControlConfig) (*entity.StockControlConfig, error) {
	if cfg == nil || strings.TrimSpace(cfg.TenantID) == "" {
		return nil, domain.ErrInvalidInput
	}
	if cfg.ControlMode == "" {
		cfg.ControlMode = entity.ControlModeOrders
	}
	if !cfg.ControlMode.Valid() {
		return nil, fmt.Errorf("%w: modo de control %q", domain.ErrInvalidInput, cfg.ControlMode)
	}
	cfg.UpdatedAt = s.now().UTC()
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant_id", cfg.TenantID).Bool("strict_mode", cfg.StrictMode).
		Str("control_mode", string(cfg.ControlMode)).Msg("configuración de stock actualizada")
	return cfg, nil
}

func (s *LedgerService) strictMode(ctx context.Context, tenantID string) (bool, error) {
	cfg, err := s.GetControlConfig(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return cfg.StrictMode, nil
}

// UpsertProfileInput campos de stock del catálogo de un producto.
type UpsertProfileInput struct {
	TenantID         string
	ProductID        string
	Name             string
	UnitPolicy       unit.Policy
	MinimumThreshold decimal.Decimal
	ThresholdEnabled bool
	InitialStock     decimal.Decimal // cero = sin stock inicial
}

// UpsertProfile crea o actualiza el perfil de stock. Un cambio de política solo afecta a los
// movimientos nuevos. Con InitialStock > 0 y sin movimientos previos registra la entrada inicial.
func (s *LedgerService) UpsertProfile(ctx context.Context, in UpsertProfileInput) (*entity.ProductStockProfile, error) {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.ProductID) == "" {
		return nil, fmt.Errorf("%w: tenant y producto son obligatorios", domain.ErrInvalidInput)
	}
	if in.UnitPolicy == "" {
		in.UnitPolicy = unit.Integer
	}
	if !in.UnitPolicy.Valid() {
		return nil, fmt.Errorf("%w: política de unidad %q", domain.ErrInvalidInput, in.UnitPolicy)
	}
	if in.MinimumThreshold.IsNegative() {
		return nil, fmt.Errorf("%w: el stock mínimo no puede ser negativo", domain.ErrInvalidInput)
	}
	if in.InitialStock.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}

	if err := s.profiles.Save(ctx, &entity.ProductStockProfile{
		TenantID:         in.TenantID,
		ProductID:        in.ProductID,
		Name:             strings.TrimSpace(in.Name),
		UnitPolicy:       in.UnitPolicy,
		MinimumThreshold: in.UnitPolicy.Normalize(in.MinimumThreshold),
		ThresholdEnabled: in.ThresholdEnabled,
		UpdatedAt:        s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	if in.InitialStock.IsPositive() {
		if _, err := s.record(ctx, RecordMovementInput{
			TenantID:    in.TenantID,
			ProductID:   in.ProductID,
			Kind:        entity.MovementInflow,
			Quantity:    in.InitialStock,
			Note:        NoteInitialStock,
			Actor:       entity.ActorSystem,
			onlyIfEmpty: true,
		}); err != nil {
			return nil, err
		}
	}
	return s.profiles.Get(ctx, in.TenantID, in.ProductID)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrUnitPrecisionViolation):
		return "unit_precision"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	}
	return "internal"
}
