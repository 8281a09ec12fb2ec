package kmc

import "errors"

// Sentinel errors returned by the engine. Callers match with errors.Is;
// returned errors wrap these with call-site context.
var (
	// ErrNotInitialized is returned when an operation requires a prior
	// SetTimeResolution or InitializeSystem call.
	ErrNotInitialized = errors.New("kmc: system not initialized")

	// ErrUnknownSite is returned when a site id has no topology feature.
	ErrUnknownSite = errors.New("kmc: unknown site")

	// ErrDuplicateRate is returned by AddRate for an existing pair.
	ErrDuplicateRate = errors.New("kmc: rate already added")

	// ErrInvalidArgument is returned for non-positive rates, time
	// resolutions, tolerances and similar bad inputs.
	ErrInvalidArgument = errors.New("kmc: invalid argument")

	// ErrWalkerUnplaced is returned when a walker has no current site.
	ErrWalkerUnplaced = errors.New("kmc: walker has no current site")

	// ErrInternal signals an engine invariant violation and is fatal.
	ErrInternal = errors.New("kmc: internal invariant violated")
)
