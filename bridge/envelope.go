package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/wippyai/script-host/errors"
)

// Reserved channel and topic names.
const (
	BroadcastChannel = "_EVENTS_"
	SystemChannel    = "_SYSTEM_"
	ErrorTopic       = "error"
)

// Control payloads on the system channel.
const (
	ReadyForAppEvents = "ready-for-app-events"
	Pause             = "pause"
	Resume            = "resume"
)

// Envelope is a decoded message.
type Envelope struct {
	// Channel the envelope arrived on. Not part of the wire form.
	Channel string `json:"-"`
	Tag     string `json:"tag"`
	Message any    `json:"message"`
	// Opaque is set when the payload was not JSON; Message is then the raw string.
	Opaque bool `json:"-"`
}

// Decode parses raw as it arrived on channel. A non-nil error is a
// DecodeFailure; the returned envelope is still usable, untagged.
// JSON numbers decode as float64, the same precision the script side has.
func Decode(channel string, raw []byte) (Envelope, error) {
	env := Envelope{Channel: channel}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		env.Message = string(raw)
		env.Opaque = true
		return env, nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		env.Message = v
		return env, nil
	}

	tag, present := obj["tag"]
	if !present {
		env.Message = obj
		return env, nil
	}

	s, ok := tag.(string)
	if !ok {
		env.Message = obj
		return env, errors.DecodeFailure(channel, fmt.Errorf("tag is %T, not a string", tag))
	}
	env.Tag = s
	env.Message = obj["message"]
	return env, nil
}

// Encode produces the wire envelope for tag and message.
func Encode(tag string, message any) ([]byte, error) {
	data, err := json.Marshal(Envelope{Tag: tag, Message: message})
	if err != nil {
		return nil, errors.Encode(tag, err)
	}
	return data, nil
}

// Marshal converts an outbound value to its wire form. Strings and byte
// slices pass through; everything else is JSON.
func Marshal(channel string, message any) ([]byte, error) {
	switch m := message.(type) {
	case string:
		return []byte(m), nil
	case []byte:
		return m, nil
	case json.RawMessage:
		return m, nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return nil, errors.Encode(channel, err)
	}
	return data, nil
}
