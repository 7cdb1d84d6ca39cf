package domain

import "errors"

var (
	ErrNetworkTransient    = errors.New("network transient failure")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrPersistence         = errors.New("persistence failure")
	ErrDataShape           = errors.New("unexpected data shape")

	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerExists   = errors.New("player already tracked")
	ErrInvalidTag     = errors.New("invalid player tag")
)
