package domain

import (
	"errors"
	"fmt"
)

// ErrorKind машиночитаемый вид ошибки конвейера.
type ErrorKind string

const (
	// ErrInvalidInput ошибка вызывающей стороны: пустые данные,
	// неподдерживаемый тип содержимого, недекодируемое изображение.
	ErrInvalidInput ErrorKind = "invalid_input"
	// ErrCapabilityUnavailable конкретная модель или движок недоступны.
	// Не является отказом запроса, включает резервный путь.
	ErrCapabilityUnavailable ErrorKind = "capability_unavailable"
	// ErrProcessing неожиданный сбой после исчерпания всех резервных путей.
	ErrProcessing ErrorKind = "processing"
	// ErrBuild сбой перестроения каталожного индекса. Прежний индекс
	// остаётся действующим.
	ErrBuild ErrorKind = "build"
)

// Error структурированная ошибка конвейера: машиночитаемый вид
// плюс человекочитаемое сообщение.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error возвращает текстовое представление ошибки.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap возвращает вложенную ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создаёт ошибку конвейера заданного вида.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Errorf создаёт ошибку конвейера с форматированным сообщением.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind сообщает, относится ли ошибка (или любая из вложенных) к заданному виду.
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
