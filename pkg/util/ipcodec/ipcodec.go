// Package ipcodec encodes IP addresses and ranges for use as ordered
// LevelDB keys.
package ipcodec

import (
	"fmt"
	"net/netip"
)

const (
	// Key prefixes. Keeping IPv4 and IPv6 ranges under separate
	// prefixes preserves lexicographic ordering within each family.
	PrefixRangeV4 = "R4:"
	PrefixRangeV6 = "R6:"
	PrefixMeta    = "meta:"
)

// RangeKeyPrefix returns the key prefix for ip's address family.
func RangeKeyPrefix(ip netip.Addr) string {
	if ip.Is4() {
		return PrefixRangeV4
	}
	return PrefixRangeV6
}

// EncodeRangeKey creates the key for a range starting at ip:
// the family prefix followed by the big-endian address bytes.
func EncodeRangeKey(ip netip.Addr) []byte {
	prefix := RangeKeyPrefix(ip)
	key := make([]byte, 0, len(prefix)+16)
	key = append(key, prefix...)
	return append(key, ip.AsSlice()...)
}

// DecodeRangeKey extracts the start address from a range key.
func DecodeRangeKey(key []byte) (netip.Addr, error) {
	var want int
	switch {
	case len(key) > len(PrefixRangeV4) && string(key[:len(PrefixRangeV4)]) == PrefixRangeV4:
		key = key[len(PrefixRangeV4):]
		want = 4
	case len(key) > len(PrefixRangeV6) && string(key[:len(PrefixRangeV6)]) == PrefixRangeV6:
		key = key[len(PrefixRangeV6):]
		want = 16
	default:
		return netip.Addr{}, fmt.Errorf("invalid range key prefix")
	}

	if len(key) != want {
		return netip.Addr{}, fmt.Errorf("invalid range key length: %d", len(key))
	}
	addr, ok := netip.AddrFromSlice(key)
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid address bytes in range key")
	}
	return addr, nil
}

// CIDRToRange converts a CIDR string to its first and last addresses.
func CIDRToRange(cidr string) (start, end netip.Addr, err error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("invalid CIDR: %w", err)
	}

	start = prefix.Masked().Addr()

	// Set every host bit to 1, byte by byte. Host bit counts above 64
	// (wide IPv6 prefixes) make uint64 arithmetic unusable here.
	endBytes := start.AsSlice()
	for bit := prefix.Bits(); bit < start.BitLen(); bit++ {
		endBytes[bit/8] |= 1 << (7 - bit%8)
	}

	end, ok := netip.AddrFromSlice(endBytes)
	if !ok {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("failed to derive end address")
	}
	return start, end, nil
}

// IPToBytes converts an IP address to big-endian bytes.
func IPToBytes(ip netip.Addr) []byte {
	return ip.AsSlice()
}

// BytesToIP converts big-endian bytes to an IP address.
func BytesToIP(b []byte) (netip.Addr, error) {
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid IP bytes")
	}
	return addr, nil
}

// IsInRange checks if an IP is within [start, end] inclusive.
func IsInRange(ip, start, end netip.Addr) bool {
	return ip.Compare(start) >= 0 && ip.Compare(end) <= 0
}

// MetaKey creates a metadata key.
func MetaKey(suffix string) []byte {
	return []byte(PrefixMeta + suffix)
}
