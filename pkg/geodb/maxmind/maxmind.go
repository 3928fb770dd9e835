// Package maxmind reads City and ASN records from MaxMind mmdb files.
package maxmind

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"

	"github.com/shuntingyard/myipinfo/pkg/model"
)

// DefaultDirectory is where distribution packages install the
// GeoIP2/GeoLite2 databases.
const DefaultDirectory = "/var/lib/GeoIP"

// Filenames probed in order when no explicit path is given. The
// commercial databases take precedence over the free ones.
var (
	cityFiles = []string{"GeoIP2-City.mmdb", "GeoLite2-City.mmdb"}
	asnFiles  = []string{"GeoIP2-ASN.mmdb", "GeoLite2-ASN.mmdb"}
)

// Config controls how the databases are located and read.
type Config struct {
	Directory       string // probed for GeoIP2/GeoLite2 files, DefaultDirectory if empty
	CityPath        string // explicit City mmdb, overrides Directory
	ASNPath         string // explicit ASN mmdb, overrides Directory
	Language        string // IETF code for localized names, "en" if empty
	LastSubdivision bool   // region from the last subdivision rather than the first
}

// Readers holds the open City and ASN database handles.
type Readers struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
	lang string
	last bool
}

// Open opens the City and ASN databases per cfg. Both must open for a
// lookup to proceed; failures release any handle already acquired.
func Open(cfg Config) (*Readers, error) {
	if cfg.Directory == "" {
		cfg.Directory = DefaultDirectory
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	cityDB, err := openFirst("City", cfg.Directory, cfg.CityPath, cityFiles)
	if err != nil {
		return nil, err
	}

	asnDB, err := openFirst("ASN", cfg.Directory, cfg.ASNPath, asnFiles)
	if err != nil {
		cityDB.Close()
		return nil, err
	}

	return &Readers{
		city: cityDB,
		asn:  asnDB,
		lang: cfg.Language,
		last: cfg.LastSubdivision,
	}, nil
}

// openFirst opens an explicit path, or the first of names that exists
// under dir.
func openFirst(kind, dir, explicit string, names []string) (*geoip2.Reader, error) {
	if explicit != "" {
		db, err := geoip2.Open(explicit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s database %s: %v", model.ErrDatabaseOpen, kind, explicit, err)
		}
		return db, nil
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		db, err := geoip2.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s database %s: %v", model.ErrDatabaseOpen, kind, path, err)
		}
		return db, nil
	}

	return nil, fmt.Errorf("%w: no %s database in %s", model.ErrDatabaseOpen, kind, dir)
}

// Close closes both database handles, returning the first error.
func (r *Readers) Close() error {
	var err error
	if r.city != nil {
		if e := r.city.Close(); e != nil {
			err = e
		}
	}
	if r.asn != nil {
		if e := r.asn.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Languages opens only the City database per cfg and returns its
// metadata language list. The ASN database is not required.
func Languages(cfg Config) ([]string, error) {
	if cfg.Directory == "" {
		cfg.Directory = DefaultDirectory
	}

	db, err := openFirst("City", cfg.Directory, cfg.CityPath, cityFiles)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return db.Metadata().Languages, nil
}

// Metadata returns the City database metadata.
func (r *Readers) Metadata() maxminddb.Metadata {
	return r.city.Metadata()
}

// Languages returns the IETF language codes the City database carries
// localized names for.
func (r *Readers) Languages() []string {
	return r.Metadata().Languages
}

// City returns the city-level record for ip, or (nil, nil) when the
// database has no coverage for the address.
func (r *Readers) City(ip netip.Addr) (*model.CityRecord, error) {
	rec, err := r.city.City(net.IP(ip.AsSlice()))
	if err != nil {
		return nil, fmt.Errorf("City lookup failed: %w", err)
	}
	if cityIsEmpty(rec) {
		return nil, nil
	}

	out := &model.CityRecord{
		City:           localized(rec.City.Names, r.lang),
		Country:        rec.Country.IsoCode,
		Postal:         rec.Postal.Code,
		Timezone:       rec.Location.TimeZone,
		AccuracyRadius: rec.Location.AccuracyRadius,
	}

	if n := len(rec.Subdivisions); n > 0 {
		sub := rec.Subdivisions[0]
		if r.last {
			sub = rec.Subdivisions[n-1]
		}
		out.Region = localized(sub.Names, r.lang)
		out.RegionCode = sub.IsoCode
	}

	// 0,0 with no other location data means the database carried no
	// coordinates for this network.
	if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
		out.Latitude = rec.Location.Latitude
		out.Longitude = rec.Location.Longitude
		out.HasLocation = true
	}

	return out, nil
}

// ASN returns the AS record for ip, or (nil, nil) when the address has
// no visible AS assignment.
func (r *Readers) ASN(ip netip.Addr) (*model.ASNRecord, error) {
	rec, err := r.asn.ASN(net.IP(ip.AsSlice()))
	if err != nil {
		return nil, fmt.Errorf("ASN lookup failed: %w", err)
	}
	if rec.AutonomousSystemNumber == 0 && rec.AutonomousSystemOrganization == "" {
		return nil, nil
	}
	return &model.ASNRecord{
		Number:       rec.AutonomousSystemNumber,
		Organization: rec.AutonomousSystemOrganization,
	}, nil
}

// localized picks the name for lang, falling back to English.
func localized(names map[string]string, lang string) string {
	if s := names[lang]; s != "" {
		return s
	}
	return names["en"]
}

// cityIsEmpty reports whether the lookup produced the zero record the
// reader returns for addresses absent from the database.
func cityIsEmpty(rec *geoip2.City) bool {
	return rec.City.GeoNameID == 0 &&
		rec.Country.IsoCode == "" &&
		rec.Continent.Code == "" &&
		len(rec.Subdivisions) == 0 &&
		rec.Postal.Code == "" &&
		rec.Location.TimeZone == "" &&
		rec.Location.Latitude == 0 &&
		rec.Location.Longitude == 0
}
