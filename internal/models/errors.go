package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("object store error")
	ErrCatalog    = errors.New("catalog error")
	// ErrHasDocuments - у инцидента остались документы, строку удалять нельзя
	ErrHasDocuments = errors.New("incident still has documents")
)

// ValidationError - ошибка входных данных, до хранилищ не доходит
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError - нормализованная ошибка объектного хранилища.
// Retryable выставляется для таймаутов и временных сбоев провайдера.
type StoreError struct {
	Op        string
	Key       string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string {
	msg := "object store " + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// IsRetryable сообщает, можно ли повторить операцию с хранилищем
func IsRetryable(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Retryable
}

// KindOf возвращает короткое имя класса ошибки для ответов API
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrCatalog):
		return "catalog"
	default:
		return "internal"
	}
}
