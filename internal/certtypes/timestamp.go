package certtypes

import "time"

// Timestamp is a certificate timestamp: unix time in microseconds. A
// dedicated type (rather than time.Time) keeps certificate payloads
// deterministic under CBOR encoding and makes "strictly greater than"
// comparisons exact, mirroring how the teacher's MMRState carries
// Timestamp as a plain int64 rather than a library time type.
type Timestamp int64

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t))
}

func (t Timestamp) After(other Timestamp) bool { return t > other }

func (t Timestamp) Before(other Timestamp) bool { return t < other }

// Max returns the larger of two timestamps, used by the
// RequireGreaterTimestamp retry contract: next := Max(strictlyGreaterThan, now).
func Max(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}

// StrictlyAfter computes the smallest timestamp guaranteed to be strictly
// greater than both the server-suggested floor and the current time, used
// when regenerating certificates after a RequireGreaterTimestamp rejection.
func StrictlyAfter(floor Timestamp, now time.Time) Timestamp {
	candidate := Max(floor, TimestampFromTime(now))
	if candidate <= floor {
		candidate = floor + 1
	}
	return candidate
}
