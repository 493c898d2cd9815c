package domain

import "errors"

// Errores de dominio del ledger de stock (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrForbidden    = errors.New("acceso denegado")

	// ErrInvalidQuantity: cantidad <= 0. Se rechaza antes de cualquier escritura.
	ErrInvalidQuantity = errors.New("la cantidad debe ser mayor que cero")
	// ErrUnitPrecisionViolation: la cantidad tiene más precisión de la que admite la unidad del producto.
	ErrUnitPrecisionViolation = errors.New("la cantidad excede la precisión de la unidad del producto")
	// ErrInsufficientStock: salida mayor al saldo con modo estricto activo; no se registra nada.
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrConcurrencyConflict: el token de versión del saldo cambió durante la escritura.
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia sobre el saldo")
	// ErrStoreUnavailable: fallo del almacenamiento durable. El movimiento no se da por registrado.
	ErrStoreUnavailable = errors.New("almacenamiento no disponible")
)
