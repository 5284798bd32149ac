package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 業務エラー。handlerはerrors.Isで判定してもよい
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation error")
	ErrEmptyCart          = errors.New("empty cart")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrPriceMismatch      = errors.New("price mismatch")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotPending         = errors.New("order not pending")
	ErrOrderMismatch      = errors.New("order mismatch")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInternal           = errors.New("internal error")
)

type HTTPError struct {
	Status  int
	Message string
	Code    string
	Err     error
	Details map[string]any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 原因のsentinelとclient向けのコードを持つエラー
func newCodedError(status int, code string, sentinel error, message string, details map[string]any) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Code:    code,
		Err:     sentinel,
		Details: details,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func errUnauthenticated() error {
	return newCodedError(http.StatusUnauthorized, "UNAUTHENTICATED", ErrUnauthenticated, "unauthorized", nil)
}

func errValidation(message string) error {
	return newCodedError(http.StatusBadRequest, "VALIDATION_ERROR", ErrValidation, message, nil)
}

func errOrderNotFound() error {
	return newCodedError(http.StatusNotFound, "ORDER_NOT_FOUND", ErrOrderNotFound, "order not found", nil)
}

func errForbidden() error {
	return newCodedError(http.StatusForbidden, "FORBIDDEN", ErrForbidden, "forbidden", nil)
}

func errNotPending() error {
	return newCodedError(http.StatusConflict, "NOT_PENDING", ErrNotPending, "order is not awaiting payment", nil)
}

func errInvalidSignature() error {
	return newCodedError(http.StatusBadRequest, "INVALID_SIGNATURE", ErrInvalidSignature, "invalid signature", nil)
}

// 詳細はログへ。clientには中身を返さない
func errDB() error {
	return newCodedError(http.StatusInternalServerError, "INTERNAL", ErrInternal, "db error", nil)
}
