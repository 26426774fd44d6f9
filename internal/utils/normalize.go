package utils

// CreateRankList returns the 1-based ranks of count items already in order.
func CreateRankList(count int) []uint16 {
	ranks := make([]uint16, max(count, 0))
	for i := range ranks {
		ranks[i] = uint16(i + 1)
	}
	return ranks
}
