// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Mark Feghali

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shuntingyard/myipinfo/pkg/geodb"
	"github.com/shuntingyard/myipinfo/pkg/geodb/maxmind"
	"github.com/shuntingyard/myipinfo/pkg/geodb/rangedb"
	"github.com/shuntingyard/myipinfo/pkg/ipinfo"
	"github.com/shuntingyard/myipinfo/pkg/resolve"
)

const version = "1.0.0"

type options struct {
	mmdbDir  string
	cityPath string
	asnPath  string
	rangeDB  string
	lang     string
	last     bool
	listLang bool
	jsonOut  bool
	noRDNS   bool
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.mmdbDir, "m", maxmind.DefaultDirectory, "Directory containing mmdb files")
	flag.StringVar(&opts.cityPath, "city", "", "Explicit City mmdb file (overrides -m)")
	flag.StringVar(&opts.asnPath, "asn", "", "Explicit ASN mmdb file (overrides -m)")
	flag.StringVar(&opts.rangeDB, "db", "", "Path to a LevelDB range database (replaces the mmdb files)")
	flag.StringVar(&opts.lang, "lang", "en", "IETF language code used to query names")
	flag.BoolVar(&opts.last, "last", false, "Read last subdivision for region details rather than first")
	flag.BoolVar(&opts.listLang, "ll", false, "List IETF language codes applicable for the City DB and exit")
	flag.BoolVar(&opts.jsonOut, "json", true, "Output as JSON")
	flag.BoolVar(&opts.noRDNS, "no-rdns", false, "Skip the reverse DNS lookup for the hostname field")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "DNS resolution timeout")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("myipinfo version %s\n", version)
		return
	}

	if opts.listLang {
		if err := runListLanguages(opts); err != nil {
			fatal(err)
		}
		return
	}

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	if err := run(opts, flag.Arg(0)); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: myipinfo [options] <ip-address-or-hostname>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  myipinfo 142.250.203.110\n")
	fmt.Fprintf(os.Stderr, "  myipinfo -m /usr/share/GeoIP 2001:4860:4860::8888\n")
	fmt.Fprintf(os.Stderr, "  myipinfo -lang de -last www.example.org\n")
	fmt.Fprintf(os.Stderr, "  myipinfo -db /data/rangedb 8.8.8.8\n")
}

// run performs exactly one lookup. It returns instead of exiting so
// the deferred database close runs on every path, errors included.
func run(opts options, query string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	res := resolve.New()
	addr, err := res.Resolve(ctx, query)
	if err != nil {
		return err
	}

	// Not routed, so no database can know it.
	if ipinfo.IsBogon(addr) {
		return output(opts, ipinfo.ComposeBogon(addr))
	}

	db, err := openDatabase(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	city, err := db.City(addr)
	if err != nil {
		return fmt.Errorf("City lookup for %s: %w", addr, err)
	}
	asn, err := db.ASN(addr)
	if err != nil {
		return fmt.Errorf("ASN lookup for %s: %w", addr, err)
	}

	var hostname string
	if !opts.noRDNS {
		hostname = res.ReverseName(ctx, addr)
	}

	return output(opts, ipinfo.Compose(addr, hostname, city, asn))
}

func openDatabase(opts options) (geodb.Database, error) {
	if opts.rangeDB != "" {
		db, err := rangedb.Open(opts.rangeDB)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := maxmind.Open(maxmind.Config{
		Directory:       opts.mmdbDir,
		CityPath:        opts.cityPath,
		ASNPath:         opts.asnPath,
		Language:        opts.lang,
		LastSubdivision: opts.last,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func output(opts options, info *ipinfo.Info) error {
	if opts.jsonOut {
		return ipinfo.Render(os.Stdout, info, false)
	}
	ipinfo.RenderText(os.Stdout, info)
	return nil
}

func runListLanguages(opts options) error {
	if opts.rangeDB != "" {
		return fmt.Errorf("-ll needs the mmdb backend, not -db")
	}

	langs, err := maxmind.Languages(maxmind.Config{
		Directory: opts.mmdbDir,
		CityPath:  opts.cityPath,
	})
	if err != nil {
		return err
	}

	fmt.Println(strings.Join(langs, ", "))
	return nil
}
