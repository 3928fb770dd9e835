package model

import "net/netip"

// CityRecord holds the city-level geolocation fields for one IP
// address. A nil *CityRecord means the database has no coverage for
// the address; within a record, an empty string means the database
// carried no value for that field.
type CityRecord struct {
	City           string  // localized city name
	Region         string  // localized subdivision name
	RegionCode     string  // subdivision ISO code (e.g., "ENG", "ZH")
	Country        string  // ISO 3166-1 alpha-2 country code
	Postal         string  // postal code
	Timezone       string  // IANA timezone name
	Latitude       float64 // valid only when HasLocation
	Longitude      float64 // valid only when HasLocation
	HasLocation    bool
	AccuracyRadius uint16 // kilometers, 0 if unknown
}

// ASNRecord holds the network-ownership fields for one IP address.
// A nil *ASNRecord means the address has no visible AS assignment.
type ASNRecord struct {
	Number       uint   // autonomous system number
	Organization string // AS organization name
}

// RangeRecord is one stored entry in the LevelDB range backend: an
// inclusive [Start, End] range carrying the City and ASN data for
// every address it contains. Either record may be nil.
type RangeRecord struct {
	Start  netip.Addr
	End    netip.Addr
	Prefix string // original CIDR notation, informational
	City   *CityRecord
	ASN    *ASNRecord
	Schema int // schema version for future migrations
}

// Error types
type Error string

const (
	ErrInvalidInput   Error = "invalid address or hostname"
	ErrResolution     Error = "hostname resolution failed"
	ErrDatabaseOpen   Error = "cannot open geolocation database"
	ErrNotFound       Error = "IP not found in database"
	ErrInvalidIP      Error = "invalid IP address"
	ErrDatabaseClosed Error = "database is closed"
	ErrOverlap        Error = "overlapping range detected"
	ErrInvalidRange   Error = "invalid IP range"
)

func (e Error) Error() string {
	return string(e)
}
