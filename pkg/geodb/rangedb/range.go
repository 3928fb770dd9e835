package rangedb

import (
	"fmt"
	"net/netip"

	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/shuntingyard/myipinfo/pkg/model"
	"github.com/shuntingyard/myipinfo/pkg/util/ipcodec"
)

// PutRange stores a range record. Re-putting a record with identical
// bounds replaces it; any other overlap with an existing range is
// rejected with ErrOverlap.
func (d *DB) PutRange(rec *model.RangeRecord) error {
	if !rec.Start.IsValid() || !rec.End.IsValid() {
		return model.ErrInvalidRange
	}
	if rec.Start.Is4() != rec.End.Is4() {
		return fmt.Errorf("%w: mixed address families", model.ErrInvalidRange)
	}
	if rec.Start.Compare(rec.End) > 0 {
		return fmt.Errorf("%w: start %v > end %v", model.ErrInvalidRange, rec.Start, rec.End)
	}

	if err := d.checkOverlap(rec); err != nil {
		return err
	}

	value, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if err := d.put(ipcodec.EncodeRangeKey(rec.Start), value); err != nil {
		return fmt.Errorf("failed to store range: %w", err)
	}
	return nil
}

// PutCIDR stores a range record covering the given CIDR block.
func (d *DB) PutCIDR(cidr string, city *model.CityRecord, asn *model.ASNRecord) error {
	start, end, err := ipcodec.CIDRToRange(cidr)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidRange, err)
	}
	return d.PutRange(&model.RangeRecord{
		Start:  start,
		End:    end,
		Prefix: cidr,
		City:   city,
		ASN:    asn,
		Schema: schemaVersion,
	})
}

// checkOverlap inspects the neighbors of the insertion point. Only
// the range starting at or before rec.Start and the one starting
// after it can overlap, since existing ranges are disjoint.
func (d *DB) checkOverlap(rec *model.RangeRecord) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return model.ErrDatabaseClosed
	}

	prefix := ipcodec.RangeKeyPrefix(rec.Start)
	iter := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	if iter.Seek(ipcodec.EncodeRangeKey(rec.Start)) {
		// Also examine the range starting just before rec.Start.
		if !iter.Prev() {
			iter.First()
		}
	} else if !iter.Last() {
		// No ranges in this family yet.
		return nil
	}

	for checked := 0; checked < 2 && iter.Valid(); checked++ {
		start, err := ipcodec.DecodeRangeKey(iter.Key())
		if err != nil {
			return fmt.Errorf("corrupt range key: %w", err)
		}
		existing, err := decodeRecord(ipcodec.IPToBytes(start), iter.Value())
		if err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}

		if rec.Start.Compare(existing.End) <= 0 && existing.Start.Compare(rec.End) <= 0 {
			if existing.Start == rec.Start && existing.End == rec.End {
				// Same bounds, treated as an update.
				return nil
			}
			return fmt.Errorf("%w: %v-%v overlaps %v-%v",
				model.ErrOverlap, rec.Start, rec.End, existing.Start, existing.End)
		}

		iter.Next()
	}

	return nil
}

// DeleteRange removes the range starting at start.
func (d *DB) DeleteRange(start netip.Addr) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return model.ErrDatabaseClosed
	}

	return d.db.Delete(ipcodec.EncodeRangeKey(start), nil)
}
