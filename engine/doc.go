// Package engine runs the script interpreter on wazero.
//
// The interpreter is a WASI preview1 command module. Each Run instantiates
// it afresh with the invocation's argv and environment; the host root is
// mounted at the same path inside the guest so workspace paths mean the
// same thing on both sides.
//
// # Architecture
//
//	Engine     - owns the wazero runtime, host modules and compiled modules
//	Transport  - host end of the bridge, exported to the guest as script_bridge
//	lineWriter - mirrors guest stdout/stderr to zap, one record per line
//
// # Bridge ABI
//
// The script_bridge host module exports two functions:
//
//	send_message(ch_ptr, ch_len, msg_ptr, msg_len i32) -> i32
//	recv_message(buf_ptr, buf_cap i32) -> i32
//
// send_message hands a payload to the host and returns 0, or a negative
// code when the pointers are out of range. recv_message copies the oldest
// queued frame into the buffer and returns its length, 0 when nothing is
// queued, or the negated frame length when the buffer is too small. A
// frame is a little-endian u32 channel length, the channel and the payload.
//
// # Exit Codes
//
// The exit code comes from proc_exit. A run whose context is cancelled is
// closed by wazero and reported as an interrupted error with code -1.
//
// # Environment
//
// Every run sees, in increasing precedence: Config.Env, the module search
// path under Config.ModulePathEnv, TMPDIR pointing at the cache directory,
// HOME pointing at the root, and finally Invocation.Env.
//
// # Thread Safety
//
// Engine is safe for concurrent use; compiled modules are shared.
package engine
