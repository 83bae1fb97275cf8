package deploy

import (
	"context"
	"errors"
)

// ErrEndpointUnresolved is returned when an endpoint is resolved before the
// deployment that provides it succeeded.
var ErrEndpointUnresolved = errors.New("endpoint is not resolved, the application has not been deployed")

// ResolveFunc computes an endpoint address on demand.
type ResolveFunc func(ctx context.Context) (string, error)

// Endpoint is a lazily resolved address. The zero value is Unresolved.
type Endpoint struct {
	resolve ResolveFunc
}

// Unresolved returns an endpoint that fails to resolve.
func Unresolved() Endpoint {
	return Endpoint{}
}

// Resolvable returns an endpoint computed by fn on each Resolve.
func Resolvable(fn ResolveFunc) Endpoint {
	return Endpoint{resolve: fn}
}

// Fixed returns an endpoint with a known address.
func Fixed(address string) Endpoint {
	return Resolvable(func(context.Context) (string, error) { return address, nil })
}

// IsResolved reports whether the endpoint has a resolver.
func (e Endpoint) IsResolved() bool {
	return e.resolve != nil
}

// Resolve returns the address, or ErrEndpointUnresolved.
func (e Endpoint) Resolve(ctx context.Context) (string, error) {
	if e.resolve == nil {
		return "", ErrEndpointUnresolved
	}
	return e.resolve(ctx)
}
