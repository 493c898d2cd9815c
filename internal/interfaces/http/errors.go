package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// newValidator validator que reporta los campos con su nombre JSON.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage primer error de validación en texto legible.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "datos inválidos"
	}
	e := verrs[0]
	switch e.Tag() {
	case "required":
		return e.Field() + ": campo obligatorio"
	case "max":
		return e.Field() + ": máximo " + e.Param()
	case "min":
		return e.Field() + ": mínimo " + e.Param()
	case "oneof":
		return e.Field() + ": debe ser uno de [" + e.Param() + "]"
	}
	return e.Field() + ": valor inválido"
}

type errorMapping struct {
	target error
	status int
	code   string
}

// El orden importa: ErrInvalidQuantity y ErrUnitPrecisionViolation se revisan antes que ErrInvalidInput.
var errorMappings = []errorMapping{
	{domain.ErrInvalidQuantity, fiber.StatusBadRequest, "INVALID_QUANTITY"},
	{domain.ErrUnitPrecisionViolation, fiber.StatusBadRequest, "UNIT_PRECISION"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
	{domain.ErrConcurrencyConflict, fiber.StatusConflict, "CONCURRENCY_CONFLICT"},
	{domain.ErrStoreUnavailable, fiber.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
}

// errorCode status y código HTTP de un error del dominio.
func errorCode(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}

// writeError responde con dto.ErrorResponse. Los 5xx no exponen el detalle interno.
func writeError(c *fiber.Ctx, err error) error {
	status, code := errorCode(err)
	msg := err.Error()
	if status >= fiber.StatusInternalServerError {
		msg = "error interno, intente nuevamente"
		if code == "STORE_UNAVAILABLE" {
			msg = "almacenamiento no disponible, el resultado de la operación es desconocido"
		}
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: msg})
}
