package xeno

import "bytes"

// SyncMarkerLen is the length of the sync marker.
const SyncMarkerLen = 4

// syncMarker is a degenerate frame (length 4, checksum 0x55, nothing else)
// doubling as the resync beacon.
var syncMarker = [SyncMarkerLen]byte{0x04, 0x00, 0x00, 0x55}

// syncKeepTail is what survives a scan without a marker: the longest
// prefix of a marker that might be completed by the next read.
const syncKeepTail = SyncMarkerLen - 1

// syncScanRetain is the largest accumulator kept as-is by a scan that
// found no marker.
const syncScanRetain = 2*SyncMarkerLen - 1

// SyncMarker returns a copy of the sync marker bytes.
func SyncMarker() []byte {
	return append([]byte(nil), syncMarker[:]...)
}

// IsSyncMarker reports whether buf starts with the sync marker.
func IsSyncMarker(buf []byte) bool {
	return len(buf) >= SyncMarkerLen && bytes.Equal(buf[:SyncMarkerLen], syncMarker[:])
}

// ContainsSyncPattern returns the offset of the first sync marker in buf,
// or -1.
func ContainsSyncPattern(buf []byte) int {
	return bytes.Index(buf, syncMarker[:])
}

// LocateSyncBreak assumes buf starts with zero or more sync markers and
// returns the offset of the first byte that is not part of one.
func LocateSyncBreak(buf []byte) int {
	i := 0
	for ; i < len(buf)-3; i += SyncMarkerLen {
		if !IsSyncMarker(buf[i:]) {
			return i
		}
	}
	return i
}

// ScanBufferForSync looks for the sync marker in a desynced accumulator
// and returns what is left of it. When a marker is found everything up to
// and including the last marker is dropped, so a storm of markers
// collapses to its tail. Without a marker only the last 3 bytes survive
// (once the accumulator holds more than 7), which bounds growth without
// losing a marker split across two reads.
func ScanBufferForSync(acc []byte) ([]byte, bool) {
	if last := bytes.LastIndex(acc, syncMarker[:]); last >= 0 {
		return acc[last+SyncMarkerLen:], true
	}
	if len(acc) > syncScanRetain {
		return acc[len(acc)-syncKeepTail:], false
	}
	return acc, false
}
