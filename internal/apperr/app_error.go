package apperr

import (
	"fmt"
	"strings"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

const (
	ValidationErrorCode = "VALIDATION_FAILED"

	ProductNotFoundCode = "PRODUCT_NOT_FOUND"
	OrderNotFoundCode   = "ORDER_NOT_FOUND"
	SerialNotFoundCode  = "SERIAL_NOT_FOUND"
	ProductArchivedCode = "PRODUCT_ARCHIVED"
	DuplicateSkuCode    = "DUPLICATE_SKU"
	DuplicateSerialCode = "DUPLICATE_SERIAL"

	NegativeStockCode                       = "NEGATIVE_STOCK"
	SerializedStockRequiresSerialOpCode     = "SERIALIZED_STOCK_REQUIRES_SERIAL_OPERATION"
	SerialProductStockIncreaseForbiddenCode = "SERIAL_PRODUCT_STOCK_INCREASE_FORBIDDEN"

	InvalidStatusTransitionCode = "INVALID_STATUS_TRANSITION"
	InsufficientStockCode       = "INSUFFICIENT_STOCK"
	SerialNotAvailableCode      = "SERIAL_NOT_AVAILABLE"
	StockConflictCode           = "STOCK_CONFLICT"
)

var (
	ValidationErr = zerror.NewValidationFailed(ValidationErrorCode, "validation error")

	ProductNotFoundErr = zerror.NewNotFound(ProductNotFoundCode, "product not found")
	OrderNotFoundErr   = zerror.NewNotFound(OrderNotFoundCode, "order not found")
	SerialNotFoundErr  = zerror.NewNotFound(SerialNotFoundCode, "serial number not found")
	ProductArchivedErr = zerror.NewUnprocessableEntity(ProductArchivedCode, "product is archived")
	DuplicateSkuErr    = zerror.NewConflict(DuplicateSkuCode, "sku already exists")
	DuplicateSerialErr = zerror.NewConflict(DuplicateSerialCode, "serial number already exists for product")

	NegativeStockErr = zerror.NewUnprocessableEntity(NegativeStockCode, "stock cannot go below zero")
	SerializedStockRequiresSerialOpErr = zerror.NewUnprocessableEntity(SerializedStockRequiresSerialOpCode,
		"stock of a serialized product can only decrease through serial operations")
	SerialProductStockIncreaseForbiddenErr = zerror.NewUnprocessableEntity(SerialProductStockIncreaseForbiddenCode,
		"stock of a serialized product can only increase by adding serial numbers")

	InvalidStatusTransitionErr = zerror.NewConflict(InvalidStatusTransitionCode, "invalid status transition")
	InsufficientStockErr       = zerror.NewConflict(InsufficientStockCode, "insufficient stock")
	SerialNotAvailableErr      = zerror.NewConflict(SerialNotAvailableCode, "serial number is not available")
	StockConflictErr           = zerror.NewConflict(StockConflictCode, "stock was modified concurrently")
)

// NewValidation returns a validation error with a specific message.
func NewValidation(format string, args ...any) zerror.ZError {
	return ValidationErr.WithMsg(format, args...)
}

func NewProductNotFound(productID string) zerror.ZError {
	return ProductNotFoundErr.WithMsg("product %s not found", productID)
}

func NewOrderNotFound(orderID string) zerror.ZError {
	return OrderNotFoundErr.WithMsg("order %s not found", orderID)
}

func NewNegativeStock(productID string, current, delta int) zerror.ZError {
	return NegativeStockErr.WithMsg("stock of product %s cannot go below zero: current %d, change %d",
		productID, current, delta)
}

func NewInvalidStatusTransition(current, requested model.OrderStatus) zerror.ZError {
	allowed := current.AllowedNext()
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return InvalidStatusTransitionErr.WithMsg("cannot move order from %s to %s, allowed: [%s]",
		current, requested, strings.Join(names, ", "))
}

func NewInsufficientStock(productID string, available, requested int) zerror.ZError {
	return InsufficientStockErr.WithMsg("insufficient stock for product %s: available %d, requested %d",
		productID, available, requested)
}

func NewStockConflict(productID string, attempts int) zerror.ZError {
	return StockConflictErr.WithMsg("stock of product %s was modified concurrently, gave up after %s",
		productID, pluralAttempts(attempts))
}

func pluralAttempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

func IsProductNotFound(err error) bool {
	return zerror.IsCode(err, ProductNotFoundCode)
}
