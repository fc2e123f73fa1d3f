package models

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
