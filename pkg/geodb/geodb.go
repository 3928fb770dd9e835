// Package geodb defines the lookup capabilities a geolocation
// database backend provides to the rest of the pipeline.
package geodb

import (
	"net/netip"

	"github.com/shuntingyard/myipinfo/pkg/model"
)

// Database answers City and ASN lookups for single addresses.
//
// A (nil, nil) return means the database has no record for the
// address. That is the normal outcome for private, reserved or
// uncovered ranges and is never an error; errors are reserved for
// broken databases and failed reads.
type Database interface {
	City(ip netip.Addr) (*model.CityRecord, error)
	ASN(ip netip.Addr) (*model.ASNRecord, error)
	Close() error
}
