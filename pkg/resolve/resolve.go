// Package resolve normalizes user input (an IP literal or a hostname)
// into a single concrete IP address.
package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/shuntingyard/myipinfo/pkg/model"
)

// LookupFunc resolves a hostname to one or more addresses.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// ReverseFunc resolves an address to its PTR names.
type ReverseFunc func(ctx context.Context, addr string) ([]string, error)

// Resolver turns a query string into one IP address. The lookup
// functions default to the OS resolver and can be replaced in tests.
type Resolver struct {
	Lookup  LookupFunc
	Reverse ReverseFunc
}

// New creates a Resolver backed by net.DefaultResolver.
func New() *Resolver {
	return &Resolver{
		Lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
		Reverse: func(ctx context.Context, addr string) ([]string, error) {
			return net.DefaultResolver.LookupAddr(ctx, addr)
		},
	}
}

// Resolve returns the address for query. An IPv4 or IPv6 literal is
// returned unchanged without any network call; anything else is
// treated as a hostname and resolved, taking the first address in
// resolver order. Resolution failures are never retried.
func (r *Resolver) Resolve(ctx context.Context, query string) (netip.Addr, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty query", model.ErrInvalidInput)
	}

	if addr, err := netip.ParseAddr(query); err == nil {
		return addr.Unmap(), nil
	}

	addrs, err := r.Lookup(ctx, query)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q: %v", model.ErrResolution, query, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: %q: no addresses returned", model.ErrResolution, query)
	}
	return addrs[0].Unmap(), nil
}

// ReverseName returns the PTR name for addr without the trailing dot.
// Best effort: any failure yields an empty string, never an error.
func (r *Resolver) ReverseName(ctx context.Context, addr netip.Addr) string {
	names, err := r.Reverse(ctx, addr.String())
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}
