package engine

// Hand-assembled core modules used by the tests.

func section(id byte, content ...byte) []byte {
	return append([]byte{id, byte(len(content))}, content...)
}

func name(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// exitModule exports _start, which calls proc_exit(code). code must be < 64.
func exitModule(code byte) []byte {
	types := section(0x01, 0x02,
		0x60, 0x01, 0x7f, 0x00, // (i32) -> ()
		0x60, 0x00, 0x00, // () -> ()
	)
	imports := section(0x02, concat(
		[]byte{0x01},
		name("wasi_snapshot_preview1"),
		name("proc_exit"),
		[]byte{0x00, 0x00},
	)...)
	funcs := section(0x03, 0x01, 0x01)
	exports := section(0x07, concat([]byte{0x01}, name("_start"), []byte{0x00, 0x01})...)
	codeSec := section(0x0a, 0x01, 0x06,
		0x00,       // no locals
		0x41, code, // i32.const code
		0x10, 0x00, // call proc_exit
		0x0b,
	)
	return concat(header, types, imports, funcs, exports, codeSec)
}

// returnModule exports a _start that returns without calling proc_exit.
func returnModule() []byte {
	types := section(0x01, 0x01, 0x60, 0x00, 0x00)
	funcs := section(0x03, 0x01, 0x00)
	exports := section(0x07, concat([]byte{0x01}, name("_start"), []byte{0x00, 0x00})...)
	code := section(0x0a, 0x01, 0x02, 0x00, 0x0b)
	return concat(header, types, funcs, exports, code)
}

// spinModule exports a _start that loops forever.
func spinModule() []byte {
	types := section(0x01, 0x01, 0x60, 0x00, 0x00)
	funcs := section(0x03, 0x01, 0x00)
	exports := section(0x07, concat([]byte{0x01}, name("_start"), []byte{0x00, 0x00})...)
	code := section(0x0a, 0x01, 0x07,
		0x00,
		0x03, 0x40, // loop
		0x0c, 0x00, // br 0
		0x0b, // end loop
		0x0b,
	)
	return concat(header, types, funcs, exports, code)
}

// memoryModule exports one page of memory as "memory".
func memoryModule() []byte {
	mem := section(0x05, 0x01, 0x00, 0x01)
	exports := section(0x07, concat([]byte{0x01}, name("memory"), []byte{0x02, 0x00})...)
	return concat(header, mem, exports)
}

// stdoutModule writes text to fd 1 with fd_write and returns. text must be
// shorter than 64 bytes.
func stdoutModule(text string) []byte {
	types := section(0x01, 0x02,
		0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, // (i32 x4) -> i32
		0x60, 0x00, 0x00, // () -> ()
	)
	imports := section(0x02, concat(
		[]byte{0x01},
		name("wasi_snapshot_preview1"),
		name("fd_write"),
		[]byte{0x00, 0x00},
	)...)
	funcs := section(0x03, 0x01, 0x01)
	mem := section(0x05, 0x01, 0x00, 0x01)
	exports := section(0x07, concat(
		[]byte{0x02},
		name("memory"), []byte{0x02, 0x00},
		name("_start"), []byte{0x00, 0x01},
	)...)
	codeSec := section(0x0a, 0x01, 0x0d,
		0x00,
		0x41, 0x01, // fd 1
		0x41, 0x00, // iovs at 0
		0x41, 0x01, // one iovec
		0x41, 0x08, // nwritten at 8
		0x10, 0x00, // call fd_write
		0x1a, // drop errno
		0x0b,
	)

	// iovec {buf: 16, len} followed by padding, then the text at 16.
	payload := concat(
		[]byte{16, 0, 0, 0, byte(len(text)), 0, 0, 0},
		make([]byte, 8),
		[]byte(text),
	)
	data := section(0x0b, concat(
		[]byte{0x01, 0x00, 0x41, 0x00, 0x0b},
		[]byte{byte(len(payload))},
		payload,
	)...)
	return concat(header, types, imports, funcs, mem, exports, codeSec, data)
}
