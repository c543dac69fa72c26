package testbed

// Guest modules assembled by hand. They stand in for the interpreter and
// exercise the bridge ABI and WASI exit codes without a JavaScript engine.

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
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

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func section(id byte, content ...[]byte) []byte {
	body := concat(content...)
	return concat([]byte{id}, uleb(uint32(len(body))), body)
}

func name(s string) []byte {
	return concat(uleb(uint32(len(s))), []byte(s))
}

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// senderModule calls script_bridge.send_message(channel, payload) once from
// _start and returns.
func senderModule(channel, payload string) []byte {
	const payloadOffset = 256

	types := section(0x01,
		[]byte{0x02},
		[]byte{0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f}, // (i32 x4) -> i32
		[]byte{0x60, 0x00, 0x00},                               // () -> ()
	)
	imports := section(0x02,
		[]byte{0x01},
		name("script_bridge"),
		name("send_message"),
		[]byte{0x00, 0x00},
	)
	funcs := section(0x03, []byte{0x01, 0x01})
	memory := section(0x05, []byte{0x01, 0x00, 0x01})
	exports := section(0x07,
		[]byte{0x02},
		name("memory"), []byte{0x02, 0x00},
		name("_start"), []byte{0x00, 0x01},
	)

	body := concat(
		[]byte{0x00},
		[]byte{0x41}, sleb(0),
		[]byte{0x41}, sleb(int32(len(channel))),
		[]byte{0x41}, sleb(payloadOffset),
		[]byte{0x41}, sleb(int32(len(payload))),
		[]byte{0x10, 0x00}, // call send_message
		[]byte{0x1a},       // drop
		[]byte{0x0b},
	)
	code := section(0x0a, []byte{0x01}, uleb(uint32(len(body))), body)

	segment := func(offset int32, data string) []byte {
		return concat([]byte{0x00, 0x41}, sleb(offset), []byte{0x0b}, name(data))
	}
	data := section(0x0b,
		[]byte{0x02},
		segment(0, channel),
		segment(payloadOffset, payload),
	)

	return concat(header, types, imports, funcs, memory, exports, code, data)
}

// exitModule calls wasi proc_exit(code) from _start.
func exitModule(code int32) []byte {
	types := section(0x01,
		[]byte{0x02},
		[]byte{0x60, 0x01, 0x7f, 0x00},
		[]byte{0x60, 0x00, 0x00},
	)
	imports := section(0x02,
		[]byte{0x01},
		name("wasi_snapshot_preview1"),
		name("proc_exit"),
		[]byte{0x00, 0x00},
	)
	funcs := section(0x03, []byte{0x01, 0x01})
	exports := section(0x07, []byte{0x01}, name("_start"), []byte{0x00, 0x01})
	body := concat([]byte{0x00, 0x41}, sleb(code), []byte{0x10, 0x00, 0x0b})
	codeSec := section(0x0a, []byte{0x01}, uleb(uint32(len(body))), body)
	return concat(header, types, imports, funcs, exports, codeSec)
}
