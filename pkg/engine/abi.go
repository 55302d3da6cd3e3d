package engine

// The guest call contract: every capability artifact exports "memory", an
// "allocate(size) -> ptr" function, and an entry point taking and returning
// a packed i64. Text crosses the boundary as UTF-8 bytes in guest memory,
// addressed by the packed pointer and length.

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a pointer and length from a packed i64.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)
	length = uint32(packed & 0xFFFFFFFF)
	return ptr, length
}
