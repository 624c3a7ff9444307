package fd1094

// Bit orderings, most significant output bit first
var (
	swapSpecial = [16]int{12, 15, 14, 13, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}

	swapA  = [16]int{15, 14, 13, 9, 11, 10, 12, 8, 2, 6, 5, 4, 3, 7, 1, 0}
	finalA = [16]int{15, 9, 10, 13, 3, 12, 0, 14, 6, 5, 2, 11, 8, 1, 4, 7}
	swapB  = [16]int{15, 14, 10, 12, 11, 13, 9, 4, 7, 6, 5, 8, 3, 2, 1, 0}
	finalB = [16]int{13, 14, 7, 0, 8, 6, 4, 2, 1, 15, 3, 11, 12, 10, 5, 9}
	swapC  = [16]int{0, 14, 13, 12, 15, 10, 9, 8, 7, 6, 11, 4, 3, 2, 1, 5}
	finalC = [16]int{10, 2, 13, 7, 8, 0, 3, 14, 6, 15, 1, 11, 9, 4, 5, 12}
	finalD = [16]int{5, 15, 13, 14, 6, 0, 9, 10, 4, 11, 1, 2, 12, 3, 7, 8}

	swapGlobal4  = [16]int{6, 14, 13, 12, 11, 10, 9, 5, 7, 15, 8, 4, 3, 2, 1, 0}
	swapGlobal3  = [16]int{15, 12, 14, 13, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	swapGlobal2  = [16]int{15, 14, 13, 12, 11, 2, 9, 8, 10, 6, 5, 4, 3, 0, 1, 7}
	swapKey3b    = [16]int{15, 14, 13, 12, 11, 10, 4, 8, 7, 6, 5, 9, 1, 2, 3, 0}
	swapKey2a    = [16]int{15, 12, 13, 14, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	swapGlobal1  = [16]int{15, 14, 13, 12, 9, 8, 11, 10, 7, 6, 5, 4, 3, 2, 1, 0}
	swapKey5a    = [16]int{15, 14, 13, 12, 11, 10, 9, 8, 4, 5, 7, 6, 3, 2, 1, 0}
	swapGlobal0a = [16]int{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 0, 3, 2, 1}
)

// Decode decrypts value fetched from the word address using key and the
// global keys derived for the current state. vectorFetch must only be set
// for the four reads of the initial SP and PC at reset
func Decode(address uint32, value uint16, key *Key, gk GlobalKeys, vectorFetch bool) uint16 {
	mainKey := key[KeyIndex(address)]

	var keyF int
	if address&0x1000 != 0 {
		keyF = bitByte(mainKey, 7)
	} else {
		keyF = bitByte(mainKey, 6)
	}

	// The vectors share their key bytes with the global key so the chip
	// drops the global key bytes stored at the same offsets
	if vectorFetch {
		if address <= 3 {
			gk.K3 = 0x00
		}
		if address <= 2 {
			gk.K2 = 0x00
		}
		if address <= 1 {
			gk.K1 = 0x00
			keyF = 0
		}
	}

	// XXX xor0 and xor1 could be bit 7 instead, and key0b could be bit 5;
	// the hardware tests done so far can't tell them apart
	globalXor0 := 1 ^ bitByte(gk.K1, 5)
	globalXor1 := 1 ^ bitByte(gk.K1, 2)
	globalSwap2 := 1 ^ bitByte(gk.K1, 0)

	globalSwap0a := 1 ^ bitByte(gk.K2, 5)
	globalSwap0b := 1 ^ bitByte(gk.K2, 2)

	globalSwap3 := 1 ^ bitByte(gk.K3, 6)
	globalSwap1 := 1 ^ bitByte(gk.K3, 4)
	globalSwap4 := 1 ^ bitByte(gk.K3, 2)

	key0a := bitByte(mainKey, 0) ^ bitByte(gk.K3, 1)
	key0b := bitByte(mainKey, 0) ^ bitByte(gk.K1, 7)
	key0c := bitByte(mainKey, 0) ^ bitByte(gk.K1, 1)

	key1a := bitByte(mainKey, 1) ^ bitByte(gk.K2, 7)
	key1b := bitByte(mainKey, 1) ^ bitByte(gk.K1, 3)

	key2a := bitByte(mainKey, 2) ^ bitByte(gk.K3, 7)
	key2b := bitByte(mainKey, 2) ^ bitByte(gk.K1, 4)

	key3a := bitByte(mainKey, 3) ^ bitByte(gk.K2, 0)
	key3b := bitByte(mainKey, 3) ^ bitByte(gk.K3, 3)

	key4a := bitByte(mainKey, 4) ^ bitByte(gk.K2, 3)
	key4b := bitByte(mainKey, 4) ^ bitByte(gk.K3, 0)

	key5a := bitByte(mainKey, 5) ^ bitByte(gk.K3, 5)
	key5b := bitByte(mainKey, 5) ^ bitByte(gk.K1, 6)

	key6a := bitByte(mainKey, 6) ^ bitByte(gk.K2, 1)
	key6b := bitByte(mainKey, 6) ^ bitByte(gk.K2, 6)

	key7a := bitByte(mainKey, 7) ^ bitByte(gk.K2, 4)

	val := value

	if val&0xe000 == 0x0000 {
		val = bitswap16(val, swapSpecial[:]...)
		return finalDecrypt(val, keyF == 1)
	}

	if val&0x8000 != 0 {
		if globalXor1 == 0 {
			if val&0x0008 == 0 {
				val ^= 0x2410 // 13,10,4
			}
			if val&0x0004 == 0 {
				val ^= 0x0022 // 5,1
			}
		}
		if key1b == 0 && val&0x1000 == 0 {
			val ^= 0x0848 // 11,6,3
		}
		if globalSwap2 == 0 && key0c == 0 {
			val ^= 0x4101 // 14,8,0
		}
		if key2b == 0 {
			val = bitswap16(val, swapA[:]...)
		}

		val = 0x6561 ^ bitswap16(val, finalA[:]...)
	}

	if val&0x4000 != 0 {
		if globalXor0 == 0 && val&0x0800 != 0 {
			val ^= 0x9048 // 15,12,6,3
		}
		if key3a == 0 && val&0x0004 != 0 {
			val ^= 0x0202 // 9,1
		}
		if key6a == 0 && val&0x0400 != 0 {
			val ^= 0x0004 // 2
		}
		if key5b == 0 && key0b == 0 {
			val ^= 0x08a1 // 11,7,5,0
		}
		if globalSwap0b == 0 {
			val = bitswap16(val, swapB[:]...)
		}

		val = 0x3523 ^ bitswap16(val, finalB[:]...)
	}

	if val&0x2000 != 0 {
		if key4a == 0 && val&0x0100 != 0 {
			val ^= 0x4210 // 14,9,4
		}
		if key1a == 0 && val&0x0040 != 0 {
			val ^= 0x0080 // 7
		}
		if key7a == 0 && val&0x0001 != 0 {
			val ^= 0x110a // 12,8,3,1
		}
		if key4b == 0 && key0a == 0 {
			val ^= 0x0040 // 6
		}
		if globalSwap0a == 0 && key6b == 0 {
			val ^= 0x0404 // 10,2
		}
		if key5b == 0 {
			val = bitswap16(val, swapC[:]...)
		}

		val = 0x99a5 ^ bitswap16(val, finalC[:]...)
	}

	val = 0x87ff ^ bitswap16(val, finalD[:]...)

	if globalSwap4 == 0 {
		val = bitswap16(val, swapGlobal4[:]...)
	}
	if globalSwap3 == 0 {
		val = bitswap16(val, swapGlobal3[:]...)
	}
	if globalSwap2 == 0 {
		val = bitswap16(val, swapGlobal2[:]...)
	}
	if key3b == 0 {
		val = bitswap16(val, swapKey3b[:]...)
	}
	if key2a == 0 {
		val = bitswap16(val, swapKey2a[:]...)
	}
	if globalSwap1 == 0 {
		val = bitswap16(val, swapGlobal1[:]...)
	}
	if key5a == 0 {
		val = bitswap16(val, swapKey5a[:]...)
	}
	if globalSwap0a == 0 {
		val = bitswap16(val, swapGlobal0a[:]...)
	}

	return finalDecrypt(val, keyF == 1)
}

// finalDecrypt inverts bits 7 and 14 following a fixed pattern of the
// incoming word and then masks out the opcodes that would reveal the
// decrypted program through PC-relative reads
func finalDecrypt(i uint16, moreFFFF bool) uint16 {
	dec := i

	if i&0xf080 == 0x8000 {
		dec ^= 0x0080
	}
	if i&0xf080 == 0xc080 {
		dec ^= 0x0080
	}
	if i&0xb080 == 0x8000 {
		dec ^= 0x4000
	}
	if i&0xb100 == 0x0000 {
		dec ^= 0x4000
	}

	if IsBlanked(dec, moreFFFF) {
		return Blank
	}

	return dec
}

// DecodeWords decodes len(src) consecutive words starting at address into
// dst, which must be at least as long as src
func DecodeWords(dst, src []uint16, address uint32, key *Key, gk GlobalKeys) {
	for i, w := range src {
		dst[i] = Decode(address+uint32(i), w, key, gk, false)
	}
}
