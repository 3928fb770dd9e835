// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Mark Feghali

// Package rangedb is a LevelDB-backed geolocation database. Each
// entry covers an inclusive IP range and carries the City and ASN
// data for every address in it, as an alternative to the mmdb backend.
package rangedb

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shuntingyard/myipinfo/pkg/model"
	"github.com/shuntingyard/myipinfo/pkg/util/ipcodec"
)

const schemaVersion = 1

// DB wraps a LevelDB instance holding range records.
type DB struct {
	db     *leveldb.DB
	mu     sync.RWMutex
	path   string
	closed bool
}

// Open opens an existing database read-only for lookups.
func Open(path string) (*DB, error) {
	opts := &opt.Options{
		ErrorIfMissing: true,
		ReadOnly:       true,
	}

	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrDatabaseOpen, path, err)
	}

	return &DB{db: db, path: path}, nil
}

// Create opens a database read-write, creating and initializing it if
// it does not exist yet.
func Create(path string) (*DB, error) {
	opts := &opt.Options{
		// Snappy keeps the record values small
		Compression: opt.SnappyCompression,
		WriteBuffer: 64 * 1024 * 1024, // 64MB, for faster bulk writes
	}

	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrDatabaseOpen, path, err)
	}

	d := &DB{db: db, path: path}
	if err := d.initMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return model.ErrDatabaseClosed
	}

	d.closed = true
	return d.db.Close()
}

// IsClosed returns true if the database is closed.
func (d *DB) IsClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Path returns the database path.
func (d *DB) Path() string {
	return d.path
}

// get retrieves a value by key; (nil, nil) when the key is absent.
func (d *DB) get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, model.ErrDatabaseClosed
	}

	value, err := d.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return value, nil
}

// put stores a key-value pair.
func (d *DB) put(key, value []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return model.ErrDatabaseClosed
	}

	return d.db.Put(key, value, nil)
}

// storedRecord is the msgpack wire form of a model.RangeRecord. The
// range start lives in the key; City and ASN presence is carried
// explicitly so absence survives the round trip.
type storedRecord struct {
	EndBytes []byte
	Prefix   string
	Schema   int

	HasCity        bool
	City           string
	Region         string
	RegionCode     string
	Country        string
	Postal         string
	Timezone       string
	Latitude       float64
	Longitude      float64
	HasLocation    bool
	AccuracyRadius uint16

	HasASN bool
	ASN    uint
	Org    string
}

func encodeRecord(rec *model.RangeRecord) ([]byte, error) {
	stored := storedRecord{
		EndBytes: ipcodec.IPToBytes(rec.End),
		Prefix:   rec.Prefix,
		Schema:   rec.Schema,
	}

	if rec.City != nil {
		stored.HasCity = true
		stored.City = rec.City.City
		stored.Region = rec.City.Region
		stored.RegionCode = rec.City.RegionCode
		stored.Country = rec.City.Country
		stored.Postal = rec.City.Postal
		stored.Timezone = rec.City.Timezone
		stored.Latitude = rec.City.Latitude
		stored.Longitude = rec.City.Longitude
		stored.HasLocation = rec.City.HasLocation
		stored.AccuracyRadius = rec.City.AccuracyRadius
	}

	if rec.ASN != nil {
		stored.HasASN = true
		stored.ASN = rec.ASN.Number
		stored.Org = rec.ASN.Organization
	}

	return msgpack.Marshal(stored)
}

func decodeRecord(startIP []byte, data []byte) (*model.RangeRecord, error) {
	var stored storedRecord
	if err := msgpack.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	start, err := ipcodec.BytesToIP(startIP)
	if err != nil {
		return nil, fmt.Errorf("invalid start IP: %w", err)
	}
	end, err := ipcodec.BytesToIP(stored.EndBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid end IP: %w", err)
	}

	rec := &model.RangeRecord{
		Start:  start,
		End:    end,
		Prefix: stored.Prefix,
		Schema: stored.Schema,
	}

	if stored.HasCity {
		rec.City = &model.CityRecord{
			City:           stored.City,
			Region:         stored.Region,
			RegionCode:     stored.RegionCode,
			Country:        stored.Country,
			Postal:         stored.Postal,
			Timezone:       stored.Timezone,
			Latitude:       stored.Latitude,
			Longitude:      stored.Longitude,
			HasLocation:    stored.HasLocation,
			AccuracyRadius: stored.AccuracyRadius,
		}
	}

	if stored.HasASN {
		rec.ASN = &model.ASNRecord{
			Number:       stored.ASN,
			Organization: stored.Org,
		}
	}

	return rec, nil
}
