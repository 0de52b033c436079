package cli

import "errors"

// Ошибки CLI.
var (
	// ErrInvalidArgs — неверное количество аргументов.
	ErrInvalidArgs = errors.New("invalid arguments")

	// ErrInvalidMode — режим не publisher и не consumer.
	ErrInvalidMode = errors.New("invalid mode")
)

// usageError — ошибка, после которой печатается usage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }
