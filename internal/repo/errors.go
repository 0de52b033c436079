package repo

import "errors"

// Ошибки архива.
var (
	// ErrEmptyDSN — не задан DSN базы данных.
	ErrEmptyDSN = errors.New("empty database dsn")
)
