package rangedb

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/shuntingyard/myipinfo/pkg/model"
	"github.com/shuntingyard/myipinfo/pkg/util/ipcodec"
)

// GetByIP returns the range record containing ip using a seek/prev
// over the ordered keys, or ErrNotFound.
func (d *DB) GetByIP(ip netip.Addr) (*model.RangeRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, model.ErrDatabaseClosed
	}
	if !ip.IsValid() {
		return nil, model.ErrInvalidIP
	}
	ip = ip.Unmap()

	// Bound the iterator to this address family so seek/prev cannot
	// cross into the other family or the metadata keys.
	prefix := ipcodec.RangeKeyPrefix(ip)
	iter := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	// Position at the last range whose start <= ip.
	if iter.Seek(ipcodec.EncodeRangeKey(ip)) {
		start, err := ipcodec.DecodeRangeKey(iter.Key())
		if err != nil {
			return nil, fmt.Errorf("corrupt range key: %w", err)
		}
		if start.Compare(ip) > 0 && !iter.Prev() {
			return nil, model.ErrNotFound
		}
	} else if !iter.Last() {
		return nil, model.ErrNotFound
	}

	start, err := ipcodec.DecodeRangeKey(iter.Key())
	if err != nil {
		return nil, fmt.Errorf("corrupt range key: %w", err)
	}

	rec, err := decodeRecord(ipcodec.IPToBytes(start), iter.Value())
	if err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	if ipcodec.IsInRange(ip, rec.Start, rec.End) {
		return rec, nil
	}
	return nil, model.ErrNotFound
}

// City implements geodb.Database. A lookup miss is (nil, nil), as is
// a containing range that carries no city data.
func (d *DB) City(ip netip.Addr) (*model.CityRecord, error) {
	rec, err := d.GetByIP(ip)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.City, nil
}

// ASN implements geodb.Database.
func (d *DB) ASN(ip netip.Addr) (*model.ASNRecord, error) {
	rec, err := d.GetByIP(ip)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.ASN, nil
}
