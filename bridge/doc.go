// Package bridge multiplexes structured messages between the host and the
// script runtime over named channels.
//
// # Wire Format
//
// A message is either a JSON envelope
//
//	{"tag": "ping", "message": {"n": 1}}
//
// or any other byte string. Non-JSON payloads are delivered as opaque
// strings with no tag; JSON values without a string tag are delivered
// untagged.
//
// # Reserved Names
//
//	_EVENTS_   broadcast: every delivered envelope is re-emitted here
//	_SYSTEM_   control traffic (ready-for-app-events, pause, resume)
//	error      decode and listener failures
//
// # Dispatch
//
// Deliver runs, in order: the callback registered for the arrival channel,
// the listeners subscribed to the envelope's tag, then the broadcast
// listeners. An envelope tagged with the broadcast name reaches broadcast
// listeners once. A panicking listener is reported on the error topic and
// does not affect other listeners or later messages.
//
// # Transports
//
// Bridge writes through a Transport. Pipe connects two bridges in-process;
// the engine package provides the wazero host end and, under GOOS=wasip1,
// GuestTransport is the runtime end.
package bridge
