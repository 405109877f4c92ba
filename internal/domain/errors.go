package domain

import "errors"

var (
	// ErrSymbolNotFound is returned when a symbol is absent from the catalog.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrInvalidPrice is returned for non-positive or non-finite prices.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidBounds is returned when proposed bounds are rejected.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrPersistenceUnavailable is returned when the durable store cannot serve a write.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
