package mmr

import "math/bits"

func BitLength64(num uint64) uint64 { return uint64(BitLength(num)) }
func BitLength(num uint64) int {
	return bits.Len64(num)
}

func AllOnes(num uint64) bool {
	return (1<<bits.OnesCount64(num) - 1) == num
}
