package catalog

import "errors"

// Sentinel errors matching the error taxonomy's disposition rules: NotFound
// and PropError are surfaced to callers, NoData is fatal to the refresh
// attempt that produced it (the prior snapshot is retained).
var (
	ErrNotFound = errors.New("catalog: object not found")
	ErrNoData   = errors.New("catalog: refresh produced zero viable objects")
	ErrPropError = errors.New("catalog: propagation error")
)
