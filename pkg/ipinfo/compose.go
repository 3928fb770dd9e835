// Package ipinfo composes database lookups into one ipinfo.io-style
// result record and renders it.
package ipinfo

import (
	"fmt"
	"net/netip"

	"github.com/shuntingyard/myipinfo/pkg/model"
)

// Info is the output record. Only IP is always set; every other field
// is either populated from a source record or omitted from the JSON
// document. Absent fields are never rendered as null or zero values.
type Info struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	Loc      string `json:"loc,omitempty"` // "latitude,longitude"
	Org      string `json:"org,omitempty"` // "AS15169 Google LLC"
	Postal   string `json:"postal,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	OSM      string `json:"osm,omitempty"` // map link, derived from Loc
	Bogon    bool   `json:"bogon,omitempty"`
}

// Compose merges the lookups for addr into one Info. Either record
// may be nil; fields backed by absent records stay absent. The result
// depends only on the inputs.
func Compose(addr netip.Addr, hostname string, city *model.CityRecord, asn *model.ASNRecord) *Info {
	info := &Info{
		IP:       addr.String(),
		Hostname: hostname,
		Org:      FormatOrg(asn),
	}

	if city != nil {
		info.City = city.City
		info.Region = city.Region
		info.Country = city.Country
		info.Postal = city.Postal
		info.Timezone = city.Timezone
		if city.HasLocation {
			info.Loc = fmt.Sprintf("%.4f,%.4f", city.Latitude, city.Longitude)
			info.OSM = fmt.Sprintf("https://openstreetmap.org/#map=11/%.4f/%.4f",
				city.Latitude, city.Longitude)
		}
	}

	return info
}

// ComposeBogon is the result for an address that is not globally
// routable; no database lookups back it.
func ComposeBogon(addr netip.Addr) *Info {
	return &Info{
		IP:    addr.String(),
		Bogon: true,
	}
}

// FormatOrg renders an ASN record the way ipinfo.io does. An absent
// record, and the never-assigned AS0, yield an empty string.
func FormatOrg(asn *model.ASNRecord) string {
	switch {
	case asn == nil:
		return ""
	case asn.Number != 0 && asn.Organization != "":
		return fmt.Sprintf("AS%d %s", asn.Number, asn.Organization)
	case asn.Number != 0:
		return fmt.Sprintf("AS%d", asn.Number)
	default:
		return asn.Organization
	}
}
