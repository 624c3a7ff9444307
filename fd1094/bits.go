package fd1094

// Bit returns bit n of v as 0 or 1.
func Bit(v uint16, n uint) int {
	return int(v>>n) & 1
}

func bitByte(v uint8, n uint) int {
	return int(v>>n) & 1
}

// bitswap16 builds a word where the first position names the source bit for
// output bit 15 and the last the source bit for output bit 0.
func bitswap16(n uint16, bits ...int) (result uint16) {
	for _, b := range bits {
		result <<= 1
		if n&(1<<b) > 0 {
			result |= 1
		}
	}
	return
}
