package engine

import "errors"

var (
	// ErrNoCatalog is returned when an operation needs the product catalog
	// before it was delivered.
	ErrNoCatalog = errors.New("catalog not loaded")
	// ErrNoCapacity is returned when an operation needs capacity information
	// before it was delivered.
	ErrNoCapacity = errors.New("capacity not loaded")
	// ErrCatalogLoaded is returned when a second catalog arrives in one run.
	ErrCatalogLoaded = errors.New("catalog already loaded")
	// ErrCapacityLoaded is returned when capacity changes after bidding began.
	ErrCapacityLoaded = errors.New("capacity already in use")
	// ErrInvalidCapacity is returned for non-positive capacity or window.
	ErrInvalidCapacity = errors.New("invalid capacity")
)
