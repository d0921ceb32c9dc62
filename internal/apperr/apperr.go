// Package apperr содержит ошибки приложения с кодами, которые транспорт
// переводит в HTTP-статусы.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Коды ошибок
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL"
	CodeUnavailable     = "UNAVAILABLE"
)

type Error struct {
	code    string
	message string
	err     error
}

func New(code, message string) *Error {
	return &Error{code: code, message: message}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

func (e *Error) Code() string { return e.code }

// Message - текст без внутренней причины, безопасный для показа пользователю
func (e *Error) Message() string { return e.message }

func (e *Error) Unwrap() error { return e.err }

// Is сравнивает ошибки по коду и сообщению, чтобы обёрнутые
// сигнальные ошибки находились через errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.err == nil && t.code == e.code && t.message == e.message
}

// Wrap оборачивает причину сигнальной ошибкой kind, сохраняя её код
func Wrap(kind *Error, err error) error {
	if err == nil {
		return nil
	}
	return &Error{code: kind.code, message: kind.message, err: err}
}

// CodeOf возвращает код ошибки; для неизвестных ошибок - INTERNAL
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeInternal
}

// MessageOf возвращает сообщение для пользователя
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.message
	}
	return "internal error"
}

// HTTPStatus переводит код ошибки в HTTP-статус
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Log пишет ошибку в структурированный лог вместе с кодом
func Log(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.Error(err), zap.String("error_code", CodeOf(err)))
	all = append(all, fields...)
	logger.Error(msg, all...)
}
