package maxmind

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxmind/mmdbwriter"
	"github.com/maxmind/mmdbwriter/mmdbtype"

	"github.com/shuntingyard/myipinfo/pkg/model"
)

// writeTestDB builds a small mmdb file with the given networks.
func writeTestDB(t *testing.T, path, dbType string, langs []string, records map[string]mmdbtype.Map) {
	t.Helper()

	tree, err := mmdbwriter.New(mmdbwriter.Options{
		DatabaseType: dbType,
		Languages:    langs,
		RecordSize:   24,
	})
	if err != nil {
		t.Fatalf("Failed to create mmdb tree: %v", err)
	}

	for cidr, data := range records {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			t.Fatalf("Bad CIDR %s: %v", cidr, err)
		}
		if err := tree.Insert(network, data); err != nil {
			t.Fatalf("Failed to insert %s: %v", cidr, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	if _, err := tree.WriteTo(f); err != nil {
		t.Fatalf("Failed to write mmdb: %v", err)
	}
}

func londonCity() mmdbtype.Map {
	return mmdbtype.Map{
		"city": mmdbtype.Map{
			"geoname_id": mmdbtype.Uint32(2643743),
			"names": mmdbtype.Map{
				"en": mmdbtype.String("London"),
				"de": mmdbtype.String("London"),
			},
		},
		"country": mmdbtype.Map{
			"iso_code": mmdbtype.String("GB"),
			"names":    mmdbtype.Map{"en": mmdbtype.String("United Kingdom")},
		},
		"subdivisions": mmdbtype.Slice{
			mmdbtype.Map{
				"iso_code": mmdbtype.String("ENG"),
				"names":    mmdbtype.Map{"en": mmdbtype.String("England")},
			},
		},
		"location": mmdbtype.Map{
			"latitude":        mmdbtype.Float64(51.5142),
			"longitude":       mmdbtype.Float64(-0.0931),
			"accuracy_radius": mmdbtype.Uint16(10),
			"time_zone":       mmdbtype.String("Europe/London"),
		},
		"postal": mmdbtype.Map{"code": mmdbtype.String("EC2V")},
	}
}

func zurichCity() mmdbtype.Map {
	return mmdbtype.Map{
		"city": mmdbtype.Map{
			"geoname_id": mmdbtype.Uint32(2657896),
			"names": mmdbtype.Map{
				"en": mmdbtype.String("Zurich"),
				"de": mmdbtype.String("Zürich"),
			},
		},
		"country": mmdbtype.Map{"iso_code": mmdbtype.String("CH")},
		"subdivisions": mmdbtype.Slice{
			mmdbtype.Map{
				"iso_code": mmdbtype.String("ZH"),
				"names": mmdbtype.Map{
					"en": mmdbtype.String("Zurich"),
					"de": mmdbtype.String("Kanton Zürich"),
				},
			},
			mmdbtype.Map{
				"iso_code": mmdbtype.String("ZH2"),
				"names":    mmdbtype.Map{"en": mmdbtype.String("Zurich District")},
			},
		},
		"location": mmdbtype.Map{
			"latitude":  mmdbtype.Float64(47.3667),
			"longitude": mmdbtype.Float64(8.55),
			"time_zone": mmdbtype.String("Europe/Zurich"),
		},
		"postal": mmdbtype.Map{"code": mmdbtype.String("8000")},
	}
}

func googleASN() mmdbtype.Map {
	return mmdbtype.Map{
		"autonomous_system_number":       mmdbtype.Uint32(15169),
		"autonomous_system_organization": mmdbtype.String("Google LLC"),
	}
}

// testDir writes a GeoLite2 City/ASN pair and returns the directory.
func testDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeTestDB(t, filepath.Join(dir, "GeoLite2-City.mmdb"), "GeoLite2-City",
		[]string{"de", "en"}, map[string]mmdbtype.Map{
			"81.2.69.0/24":   londonCity(),
			"1.2.3.0/24":     zurichCity(),
			"2001:4860::/32": zurichCity(),
		})

	writeTestDB(t, filepath.Join(dir, "GeoLite2-ASN.mmdb"), "GeoLite2-ASN",
		nil, map[string]mmdbtype.Map{
			"81.2.69.0/24":   googleASN(),
			"2001:4860::/32": googleASN(),
		})

	return dir
}

func TestLookupBothRecords(t *testing.T) {
	db, err := Open(Config{Directory: testDir(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	city, err := db.City(netip.MustParseAddr("81.2.69.142"))
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city == nil {
		t.Fatal("City record absent, want present")
	}
	if city.City != "London" {
		t.Errorf("got city %q, want London", city.City)
	}
	if city.Country != "GB" {
		t.Errorf("got country %q, want GB", city.Country)
	}
	if city.Region != "England" || city.RegionCode != "ENG" {
		t.Errorf("got region %q/%q, want England/ENG", city.Region, city.RegionCode)
	}
	if city.Postal != "EC2V" {
		t.Errorf("got postal %q, want EC2V", city.Postal)
	}
	if city.Timezone != "Europe/London" {
		t.Errorf("got timezone %q, want Europe/London", city.Timezone)
	}
	if !city.HasLocation || city.Latitude != 51.5142 || city.Longitude != -0.0931 {
		t.Errorf("got location %v/%v (has=%v), want 51.5142/-0.0931", city.Latitude, city.Longitude, city.HasLocation)
	}
	if city.AccuracyRadius != 10 {
		t.Errorf("got accuracy radius %d, want 10", city.AccuracyRadius)
	}

	asn, err := db.ASN(netip.MustParseAddr("81.2.69.142"))
	if err != nil {
		t.Fatalf("ASN failed: %v", err)
	}
	if asn == nil {
		t.Fatal("ASN record absent, want present")
	}
	if asn.Number != 15169 || asn.Organization != "Google LLC" {
		t.Errorf("got AS%d %q, want AS15169 Google LLC", asn.Number, asn.Organization)
	}
}

func TestLookupIPv6(t *testing.T) {
	db, err := Open(Config{Directory: testDir(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	ip := netip.MustParseAddr("2001:4860:4860::8888")
	city, err := db.City(ip)
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city == nil || city.Country != "CH" {
		t.Errorf("got %+v, want Zurich record", city)
	}
	asn, err := db.ASN(ip)
	if err != nil {
		t.Fatalf("ASN failed: %v", err)
	}
	if asn == nil || asn.Number != 15169 {
		t.Errorf("got %+v, want AS15169", asn)
	}
}

func TestCityWithoutASN(t *testing.T) {
	db, err := Open(Config{Directory: testDir(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	ip := netip.MustParseAddr("1.2.3.4")
	city, err := db.City(ip)
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city == nil {
		t.Fatal("City record absent, want present")
	}

	asn, err := db.ASN(ip)
	if err != nil {
		t.Fatalf("ASN failed: %v", err)
	}
	if asn != nil {
		t.Errorf("got ASN record %+v, want absent", asn)
	}
}

func TestLookupMiss(t *testing.T) {
	db, err := Open(Config{Directory: testDir(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	ip := netip.MustParseAddr("8.8.8.8")
	city, err := db.City(ip)
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city != nil {
		t.Errorf("got City record %+v, want absent", city)
	}

	asn, err := db.ASN(ip)
	if err != nil {
		t.Fatalf("ASN failed: %v", err)
	}
	if asn != nil {
		t.Errorf("got ASN record %+v, want absent", asn)
	}
}

func TestLocalizedNames(t *testing.T) {
	dir := testDir(t)

	tests := []struct {
		name     string
		lang     string
		wantCity string
	}{
		{"german names", "de", "Zürich"},
		{"english default", "", "Zurich"},
		{"fallback to english", "fr", "Zurich"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(Config{Directory: dir, Language: tt.lang})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer db.Close()

			city, err := db.City(netip.MustParseAddr("1.2.3.4"))
			if err != nil {
				t.Fatalf("City failed: %v", err)
			}
			if city == nil || city.City != tt.wantCity {
				t.Errorf("got %+v, want city %q", city, tt.wantCity)
			}
		})
	}
}

func TestSubdivisionChoice(t *testing.T) {
	dir := testDir(t)

	first, err := Open(Config{Directory: dir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer first.Close()

	city, err := first.City(netip.MustParseAddr("1.2.3.4"))
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city.RegionCode != "ZH" {
		t.Errorf("got region code %q, want first subdivision ZH", city.RegionCode)
	}

	last, err := Open(Config{Directory: dir, LastSubdivision: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer last.Close()

	city, err = last.City(netip.MustParseAddr("1.2.3.4"))
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city.RegionCode != "ZH2" {
		t.Errorf("got region code %q, want last subdivision ZH2", city.RegionCode)
	}
}

func TestCommercialDatabasePreferred(t *testing.T) {
	dir := testDir(t)

	// A GeoIP2-City.mmdb next to the GeoLite2 one must win.
	commercial := londonCity()
	commercial["city"] = mmdbtype.Map{
		"geoname_id": mmdbtype.Uint32(1),
		"names":      mmdbtype.Map{"en": mmdbtype.String("Commercial London")},
	}
	writeTestDB(t, filepath.Join(dir, "GeoIP2-City.mmdb"), "GeoIP2-City",
		[]string{"en"}, map[string]mmdbtype.Map{"81.2.69.0/24": commercial})

	db, err := Open(Config{Directory: dir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	city, err := db.City(netip.MustParseAddr("81.2.69.142"))
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city == nil || city.City != "Commercial London" {
		t.Errorf("got %+v, want the GeoIP2 record", city)
	}
}

func TestExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	cityPath := filepath.Join(dir, "city-custom.mmdb")
	asnPath := filepath.Join(dir, "asn-custom.mmdb")
	writeTestDB(t, cityPath, "GeoLite2-City", []string{"en"},
		map[string]mmdbtype.Map{"81.2.69.0/24": londonCity()})
	writeTestDB(t, asnPath, "GeoLite2-ASN", nil,
		map[string]mmdbtype.Map{"81.2.69.0/24": googleASN()})

	db, err := Open(Config{CityPath: cityPath, ASNPath: asnPath})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	city, err := db.City(netip.MustParseAddr("81.2.69.142"))
	if err != nil {
		t.Fatalf("City failed: %v", err)
	}
	if city == nil || city.City != "London" {
		t.Errorf("got %+v, want London record", city)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		_, err := Open(Config{Directory: t.TempDir()})
		if !errors.Is(err, model.ErrDatabaseOpen) {
			t.Errorf("got error %v, want %v", err, model.ErrDatabaseOpen)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Open(Config{CityPath: "/nonexistent/City.mmdb", ASNPath: "/nonexistent/ASN.mmdb"})
		if !errors.Is(err, model.ErrDatabaseOpen) {
			t.Errorf("got error %v, want %v", err, model.ErrDatabaseOpen)
		}
	})

	t.Run("not an mmdb file", func(t *testing.T) {
		dir := t.TempDir()
		bad := filepath.Join(dir, "GeoLite2-City.mmdb")
		if err := os.WriteFile(bad, []byte("not a database"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		_, err := Open(Config{Directory: dir})
		if !errors.Is(err, model.ErrDatabaseOpen) {
			t.Errorf("got error %v, want %v", err, model.ErrDatabaseOpen)
		}
	})
}

func TestLanguages(t *testing.T) {
	db, err := Open(Config{Directory: testDir(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	langs := db.Languages()
	if len(langs) != 2 || langs[0] != "de" || langs[1] != "en" {
		t.Errorf("got languages %v, want [de en]", langs)
	}
}

func TestLanguagesWithoutASNDatabase(t *testing.T) {
	// Listing languages only needs the City database.
	dir := t.TempDir()
	writeTestDB(t, filepath.Join(dir, "GeoLite2-City.mmdb"), "GeoLite2-City",
		[]string{"de", "en"}, map[string]mmdbtype.Map{"81.2.69.0/24": londonCity()})

	langs, err := Languages(Config{Directory: dir})
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	if len(langs) != 2 || langs[0] != "de" || langs[1] != "en" {
		t.Errorf("got languages %v, want [de en]", langs)
	}
}
