package engine

// Hand-assembled guest modules for exercising the engine without a guest
// toolchain. Each builder emits a complete binary module conforming to the
// packed i64 call contract: exports "memory", "allocate", and an entry point.

const (
	testDataOffset  = 1024
	testAllocOffset = 4096
)

const (
	kindFunc = 0x00
	kindMem  = 0x02
)

var (
	typeI64ToI64  = []byte{0x60, 0x01, 0x7e, 0x01, 0x7e}
	typeI32ToI32  = []byte{0x60, 0x01, 0x7f, 0x01, 0x7f}
	typeI64ToVoid = []byte{0x60, 0x01, 0x7e, 0x00}
)

// uleb encodes an unsigned LEB128 value
func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// sleb encodes a signed LEB128 value
func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sect(id byte, contents []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(contents)))...)
	return append(out, contents...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func exportEntry(name string, kind byte, idx uint32) []byte {
	out := append(wasmName(name), kind)
	return append(out, uleb(idx)...)
}

// funcBody wraps instruction bytes into a sized code entry with no locals
func funcBody(code []byte) []byte {
	inner := append([]byte{0x00}, code...)
	inner = append(inner, 0x0b)
	return append(uleb(uint32(len(inner))), inner...)
}

// allocBody hands out a fixed scratch offset; each invocation runs in a
// fresh instance so a single allocation never collides.
func allocBody() []byte {
	return funcBody(append([]byte{0x41}, sleb(testAllocOffset)...))
}

func packInt(ptr, length int64) int64 {
	return ptr<<32 | length
}

type guestSpec struct {
	types   [][]byte
	imports [][]byte
	funcs   []uint32
	memMin  uint32
	exports [][]byte
	bodies  [][]byte
	data    []byte
}

func buildGuest(spec guestSpec) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, sect(1, vec(spec.types...))...)
	if len(spec.imports) > 0 {
		out = append(out, sect(2, vec(spec.imports...))...)
	}

	funcIdxs := make([][]byte, len(spec.funcs))
	for i, ti := range spec.funcs {
		funcIdxs[i] = uleb(ti)
	}
	out = append(out, sect(3, vec(funcIdxs...))...)
	out = append(out, sect(5, vec(append([]byte{0x00}, uleb(spec.memMin)...)))...)
	out = append(out, sect(7, vec(spec.exports...))...)
	out = append(out, sect(10, vec(spec.bodies...))...)

	if spec.data != nil {
		seg := append([]byte{0x00, 0x41}, sleb(testDataOffset)...)
		seg = append(seg, 0x0b)
		seg = append(seg, uleb(uint32(len(spec.data)))...)
		seg = append(seg, spec.data...)
		out = append(out, sect(11, vec(seg))...)
	}

	return out
}

// echoGuest returns its packed input unchanged, so output equals input
func echoGuest() []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI64ToI64, typeI32ToI32},
		funcs:  []uint32{0, 1},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
			exportEntry("allocate", kindFunc, 1),
		},
		bodies: [][]byte{
			funcBody([]byte{0x20, 0x00}), // local.get 0
			allocBody(),
		},
	})
}

// constGuest returns a fixed packed value, optionally backed by a data
// segment at testDataOffset
func constGuest(packed int64, data []byte) []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI64ToI64, typeI32ToI32},
		funcs:  []uint32{0, 1},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
			exportEntry("allocate", kindFunc, 1),
		},
		bodies: [][]byte{
			funcBody(append([]byte{0x42}, sleb(packed)...)), // i64.const packed
			allocBody(),
		},
		data: data,
	})
}

// trapGuest hits an unreachable instruction immediately
func trapGuest() []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI64ToI64, typeI32ToI32},
		funcs:  []uint32{0, 1},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
			exportEntry("allocate", kindFunc, 1),
		},
		bodies: [][]byte{
			funcBody([]byte{0x00}), // unreachable
			allocBody(),
		},
	})
}

// loopGuest spins forever
func loopGuest() []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI64ToI64, typeI32ToI32},
		funcs:  []uint32{0, 1},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
			exportEntry("allocate", kindFunc, 1),
		},
		bodies: [][]byte{
			// loop; br 0; end; i64.const 0
			funcBody([]byte{0x03, 0x40, 0x0c, 0x00, 0x0b, 0x42, 0x00}),
			allocBody(),
		},
	})
}

// counterGuest increments a counter in linear memory and returns its four
// little-endian bytes; a fresh instance always answers 1.
func counterGuest() []byte {
	code := []byte{0x41, 0x80, 0x10} // i32.const 2048
	code = append(code, 0x41, 0x80, 0x10)
	code = append(code, 0x28, 0x02, 0x00) // i32.load
	code = append(code, 0x41, 0x01)       // i32.const 1
	code = append(code, 0x6a)             // i32.add
	code = append(code, 0x36, 0x02, 0x00) // i32.store
	code = append(code, 0x42)
	code = append(code, sleb(packInt(2048, 4))...)

	return buildGuest(guestSpec{
		types:  [][]byte{typeI64ToI64, typeI32ToI32},
		funcs:  []uint32{0, 1},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
			exportEntry("allocate", kindFunc, 1),
		},
		bodies: [][]byte{
			funcBody(code),
			allocBody(),
		},
	})
}

// wrongSignatureGuest exports an entry point that does not take a packed i64
func wrongSignatureGuest() []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI32ToI32},
		funcs:  []uint32{0, 0},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
			exportEntry("allocate", kindFunc, 1),
		},
		bodies: [][]byte{
			funcBody([]byte{0x20, 0x00}),
			allocBody(),
		},
	})
}

// noEntryGuest exports allocate but no entry point
func noEntryGuest() []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI32ToI32},
		funcs:  []uint32{0},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("allocate", kindFunc, 0),
		},
		bodies: [][]byte{
			allocBody(),
		},
	})
}

// noAllocateGuest exports an entry point but no allocator
func noAllocateGuest() []byte {
	return buildGuest(guestSpec{
		types:  [][]byte{typeI64ToI64},
		funcs:  []uint32{0},
		memMin: 1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 0),
		},
		bodies: [][]byte{
			funcBody([]byte{0x20, 0x00}),
		},
	})
}

// hostLogGuest sends one diagnostic line to the host, then echoes its input
func hostLogGuest(msg string) []byte {
	importEntry := append(wasmName("ironclaw"), wasmName("log_message")...)
	importEntry = append(importEntry, kindFunc)
	importEntry = append(importEntry, uleb(0)...)

	code := append([]byte{0x42}, sleb(packInt(testDataOffset, int64(len(msg))))...)
	code = append(code, 0x10, 0x00) // call the imported log function
	code = append(code, 0x20, 0x00) // local.get 0

	return buildGuest(guestSpec{
		types:   [][]byte{typeI64ToVoid, typeI64ToI64, typeI32ToI32},
		imports: [][]byte{importEntry},
		funcs:   []uint32{1, 2},
		memMin:  1,
		exports: [][]byte{
			exportEntry("memory", kindMem, 0),
			exportEntry("run", kindFunc, 1),
			exportEntry("allocate", kindFunc, 2),
		},
		bodies: [][]byte{
			funcBody(code),
			allocBody(),
		},
		data: []byte(msg),
	})
}
