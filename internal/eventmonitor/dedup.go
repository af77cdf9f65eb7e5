package eventmonitor

import (
	"crypto/sha256"

	"github.com/parsec-cloud/libparsec-go/bloom"
)

// idDedup catches duplicate event ids delivered across a reconnect (the
// server may re-send the tail of what it already sent before the drop),
// so dispatch stays idempotent (spec testable property 7) without
// keeping an unbounded set of every id ever seen. Grounded on the
// teacher's fixed-region 4-way bloom filter, reused here for a
// fixed-capacity recent-id window instead of merkle-leaf membership.
type idDedup struct {
	region   []byte
	capacity uint64
	seen     uint64
}

const dedupBitsPerElement = 10
const dedupFilterIndex = 0

func newIDDedup(capacity uint64) (*idDedup, error) {
	mBits := bloom.MBitsSafeCast(bloom.MBitsV1(capacity, dedupBitsPerElement))
	region := make([]byte, bloom.RegionBytesV1(mBits))
	if err := bloom.InitV1(region, capacity, dedupBitsPerElement, 4); err != nil {
		return nil, err
	}
	return &idDedup{region: region, capacity: capacity}, nil
}

// seenBefore reports whether id was already inserted, inserting it if
// not. Once capacity is exhausted the filter is reset, trading a brief
// window of possible re-delivery right after reset for bounded memory.
func (d *idDedup) seenBefore(id string) (bool, error) {
	if d.seen >= d.capacity {
		if err := bloom.InitV1(d.region, d.capacity, dedupBitsPerElement, 4); err != nil {
			return false, err
		}
		d.seen = 0
	}
	// The filter takes fixed 32-byte elements, so ids are hashed first.
	elem := sha256.Sum256([]byte(id))
	present, err := bloom.MaybeContainsV1(d.region, dedupFilterIndex, elem[:])
	if err != nil {
		return false, err
	}
	if present {
		return true, nil
	}
	if err := bloom.InsertV1(d.region, dedupFilterIndex, elem[:]); err != nil {
		return false, err
	}
	d.seen++
	return false, nil
}
