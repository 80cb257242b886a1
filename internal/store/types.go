package store

import "errors"

var (
	// ErrSpotNotFound is returned when no row exists for the requested spot id.
	ErrSpotNotFound = errors.New("spot not found")
	// ErrSubscriptionNotFound is returned when no push subscription matches an endpoint.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
