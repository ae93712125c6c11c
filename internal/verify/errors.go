package verify

import "errors"

var (
	// ErrMissingItem indicates an expected item was never consumed.
	ErrMissingItem = errors.New("item missing")
	// ErrDuplicateItem indicates an item was consumed more than once.
	ErrDuplicateItem = errors.New("item consumed more than once")
	// ErrUnknownItem indicates a consumed item no producer should have emitted.
	ErrUnknownItem = errors.New("unknown item")
	// ErrOutOfOrder indicates one producer's items reached a consumer out of order.
	ErrOutOfOrder = errors.New("items out of order")
)
